package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"moarnews/config"
	"moarnews/fetcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBackgroundRefreshSurvivesFailedCycle(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(rssPayload))
	}))
	defer srv.Close()

	store := newTestStore(t)
	feedId := syncFeed(t, store, config.FeedConfig{Name: "Flaky", Url: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := fetcher.New(store)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fetcher.StartBackgroundRefresh(ctx, f, 20*time.Millisecond)
	}()

	// The immediate cycle fails against the source. A later scheduled
	// cycle must still run and ingest the items.
	require.Eventually(t, func() bool {
		count, err := store.CountItems(feedId)
		return err == nil && count == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, requests.Load(), int64(2))

	feed, err := store.GetFeed(feedId)
	require.NoError(t, err)
	assert.Nil(t, feed.LastError)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler kept running after context cancellation")
	}
}
