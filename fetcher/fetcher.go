package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"moarnews/db"
	"moarnews/models"

	"github.com/mmcdole/gofeed"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Add Prometheus metrics
var (
	refreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moarnews_refresh_cycles_total",
		Help: "The total number of refresh cycles started",
	})

	refreshCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moarnews_refresh_coalesced_total",
		Help: "The total number of refresh requests absorbed by an already running cycle",
	})

	feedFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moarnews_feed_fetch_errors_total",
		Help: "The total number of per-feed fetch or parse failures",
	})

	itemsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "moarnews_items_upserted_total",
		Help: "The total number of items inserted or updated",
	})
)

const (
	fetchTimeout = 30 * time.Second
	userAgent    = "MoarNews/1.0 (RSS Aggregator)"
)

// Fetcher runs refresh cycles over all configured feeds. At most one
// cycle runs at a time; concurrent triggers are coalesced into a no-op.
type Fetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	store      *db.Store
	refreshing atomic.Bool
}

func New(store *db.Store) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: fetchTimeout},
		parser: gofeed.NewParser(),
		store:  store,
	}
}

// IsRefreshing reports whether a refresh cycle is currently running
func (f *Fetcher) IsRefreshing() bool {
	return f.refreshing.Load()
}

// RefreshAll runs one refresh cycle over every feed. If a cycle is
// already in progress the call returns immediately without starting a
// second one.
func (f *Fetcher) RefreshAll(ctx context.Context) error {
	if !f.refreshing.CompareAndSwap(false, true) {
		log.Info("Refresh already in progress, skipping")
		refreshCoalesced.Inc()
		return nil
	}
	defer f.refreshing.Store(false)

	refreshCycles.Inc()

	feeds, err := f.store.ListFeeds()
	if err != nil {
		return fmt.Errorf("list feeds: %w", err)
	}

	log.WithFields(log.Fields{"count": len(feeds)}).Info("Refreshing feeds")

	for _, feed := range feeds {
		// One feed's failure is recorded on that feed and must not
		// abort the cycle or touch its siblings
		homepage, err := f.refreshFeed(ctx, feed)
		if err != nil {
			feedFetchErrors.Inc()
			log.WithFields(log.Fields{
				"feed":  feed.Name,
				"error": err,
			}).Error("Failed to refresh feed")

			errText := err.Error()
			if err := f.store.UpdateFeedStatus(feed.Id, &errText, nil); err != nil {
				log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Failed to record feed error")
			}
			continue
		}

		if err := f.store.UpdateFeedStatus(feed.Id, nil, homepage); err != nil {
			log.WithFields(log.Fields{"feed": feed.Name, "error": err}).Error("Failed to record feed status")
		}
	}

	log.Info("Feed refresh complete")
	return nil
}

// refreshFeed fetches, parses and upserts a single feed. It returns the
// feed's discovered homepage url when the document advertises one.
func (f *Fetcher) refreshFeed(ctx context.Context, feed models.Feed) (*string, error) {
	log.WithFields(log.Fields{
		"feed": feed.Name,
		"url":  feed.Url,
	}).Info("Fetching feed")

	raw, err := f.fetch(ctx, feed.Url)
	if err != nil {
		return nil, err
	}

	// The generic parser drops RSS <comments>, recover them from the
	// raw payload before parsing
	comments := ExtractComments(raw)

	parsed, err := f.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	// Atom payloads carry rel attributes the generic parser discards,
	// recover them so replies/comments links resolve
	rels := relLinks(raw, parsed.FeedType)

	count := 0
	for _, entry := range parsed.Items {
		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}
		if guid == "" {
			log.WithFields(log.Fields{"feed": feed.Name, "title": entry.Title}).Warn("Skipping entry with no guid")
			continue
		}

		title := entry.Title
		if title == "" {
			title = "Untitled"
		}

		link := entry.Link
		if len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		if link == "" {
			log.WithFields(log.Fields{"feed": feed.Name, "title": title}).Warn("Skipping entry with no link")
			continue
		}

		links := entryLinks(entry)
		if withRels, ok := rels[entry.GUID]; ok {
			links = withRels
		}

		discussionLink := ResolveDiscussionLink(feed, guid, links, comments[link], link)

		var published *time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed
		}

		if err := f.store.UpsertItem(feed.Id, guid, title, link, discussionLink, published); err != nil {
			return nil, err
		}
		itemsUpserted.Inc()
		count++
	}

	log.WithFields(log.Fields{
		"feed":  feed.Name,
		"count": count,
	}).Info("Added/updated items")

	var homepage *string
	if parsed.Link != "" {
		homepage = &parsed.Link
	}

	return homepage, nil
}

// fetch performs a single GET for the feed url. No retries and no
// conditional requests, the next cycle converges on its own.
func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch error: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}

	return raw, nil
}
