package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"moarnews/config"
	"moarnews/db"
	"moarnews/fetcher"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssPayload = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://test.example.com</link>
<item>
  <title>First Article</title>
  <link>https://example.com/a1</link>
  <guid>guid-1</guid>
  <comments>https://forum.com/a1</comments>
  <pubDate>Mon, 15 Jan 2024 10:00:00 GMT</pubDate>
</item>
<item>
  <title>Second Article</title>
  <link>https://example.com/a2</link>
  <guid>guid-2</guid>
</item>
</channel>
</rss>`

const atomPayload = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Sparse Feed</title>
  <link href="https://sparse.example.com"/>
  <entry>
    <id>tag:sparse.example.com,2024:1</id>
    <link href="https://sparse.example.com/post1"/>
    <updated>2024-01-15T10:00:00Z</updated>
  </entry>
</feed>`

const atomRepliesPayload = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Forum Feed</title>
  <link href="https://forum.example.com"/>
  <entry>
    <id>tag:forum.example.com,2024:42</id>
    <title>Release Announcement</title>
    <link href="https://forum.example.com/t/42"/>
    <link rel="replies" href="https://forum.example.com/t/42/replies"/>
    <published>2024-01-15T10:00:00Z</published>
  </entry>
</feed>`

func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, db.Migrate(path))

	store, err := db.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func syncFeed(t *testing.T, store *db.Store, cfg config.FeedConfig) int64 {
	t.Helper()

	require.NoError(t, store.SyncFeeds([]config.FeedConfig{cfg}))
	feeds, err := store.ListFeeds()
	require.NoError(t, err)

	for _, feed := range feeds {
		if feed.Url == cfg.Url {
			return feed.Id
		}
	}
	t.Fatalf("feed %s not found after sync", cfg.Url)
	return 0
}

func TestRefreshAllIngestsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer srv.Close()

	store := newTestStore(t)
	feedId := syncFeed(t, store, config.FeedConfig{Name: "Test", Url: srv.URL, HasDiscussion: true})

	f := fetcher.New(store)
	require.NoError(t, f.RefreshAll(context.Background()))

	items, err := store.ListItems(feedId, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// The dated item sorts first
	assert.Equal(t, "First Article", items[0].Title)
	assert.Equal(t, "https://example.com/a1", items[0].Link)
	require.NotNil(t, items[0].DiscussionLink)
	assert.Equal(t, "https://forum.com/a1", *items[0].DiscussionLink)
	require.NotNil(t, items[0].Published)

	assert.Equal(t, "Second Article", items[1].Title)
	assert.Nil(t, items[1].DiscussionLink)
	assert.Nil(t, items[1].Published)

	feed, err := store.GetFeed(feedId)
	require.NoError(t, err)
	assert.NotNil(t, feed.LastFetched)
	assert.Nil(t, feed.LastError)
	require.NotNil(t, feed.HomepageUrl)
	assert.Equal(t, "https://test.example.com", *feed.HomepageUrl)

	// A second cycle over the same payload converges without duplicates
	require.NoError(t, f.RefreshAll(context.Background()))

	count, err := store.CountItems(feedId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRefreshAllFallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomPayload))
	}))
	defer srv.Close()

	store := newTestStore(t)
	feedId := syncFeed(t, store, config.FeedConfig{Name: "Sparse", Url: srv.URL})

	require.NoError(t, fetcher.New(store).RefreshAll(context.Background()))

	items, err := store.ListItems(feedId, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Missing title falls back to the literal, missing published falls
	// back to updated
	assert.Equal(t, "Untitled", items[0].Title)
	assert.Equal(t, "https://sparse.example.com/post1", items[0].Link)
	require.NotNil(t, items[0].Published)
	assert.Equal(t, "2024-01-15T10:00:00Z", *items[0].Published)
}

func TestRefreshAllResolvesAtomReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomRepliesPayload))
	}))
	defer srv.Close()

	store := newTestStore(t)
	feedId := syncFeed(t, store, config.FeedConfig{Name: "Forum", Url: srv.URL, HasDiscussion: true})

	require.NoError(t, fetcher.New(store).RefreshAll(context.Background()))

	items, err := store.ListItems(feedId, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// The rel="replies" link survives parsing and lands as the item's
	// discussion link, the plain alternate stays the main link
	assert.Equal(t, "https://forum.example.com/t/42", items[0].Link)
	require.NotNil(t, items[0].DiscussionLink)
	assert.Equal(t, "https://forum.example.com/t/42/replies", *items[0].DiscussionLink)
}

func TestRefreshAllIsolatesFeedFailures(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssPayload))
	}))
	defer good.Close()

	store := newTestStore(t)
	badId := syncFeed(t, store, config.FeedConfig{Name: "Bad", Url: bad.URL})
	goodId := syncFeed(t, store, config.FeedConfig{Name: "Good", Url: good.URL})

	require.NoError(t, fetcher.New(store).RefreshAll(context.Background()))

	badFeed, err := store.GetFeed(badId)
	require.NoError(t, err)
	require.NotNil(t, badFeed.LastError)
	assert.Contains(t, *badFeed.LastError, "unexpected status")
	assert.NotNil(t, badFeed.LastFetched)

	goodFeed, err := store.GetFeed(goodId)
	require.NoError(t, err)
	assert.Nil(t, goodFeed.LastError)

	count, err := store.CountItems(goodId)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRefreshAllSingleFlight(t *testing.T) {
	var requests atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Write([]byte(rssPayload))
	}))
	defer srv.Close()

	store := newTestStore(t)
	syncFeed(t, store, config.FeedConfig{Name: "Blocking", Url: srv.URL})

	f := fetcher.New(store)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- f.RefreshAll(context.Background())
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first refresh never reached the feed source")
	}
	assert.True(t, f.IsRefreshing())

	// A concurrent trigger is absorbed, not queued: it returns promptly
	// and must not start a second pass over the feeds
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- f.RefreshAll(context.Background())
	}()

	select {
	case err := <-secondDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("coalesced refresh did not return promptly")
	}
	assert.True(t, f.IsRefreshing())

	close(release)

	select {
	case err := <-firstDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("first refresh never completed")
	}

	assert.False(t, f.IsRefreshing())
	assert.Equal(t, int64(1), requests.Load())
}
