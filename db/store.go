package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moarnews/config"
	"moarnews/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Store owns all persisted feed and item state
type Store struct {
	db *sql.DB
}

func NewStore(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return &Store{db: db}, nil
}

func (store *Store) Close() error {
	return store.db.Close()
}

// SyncFeeds reconciles the configured feeds into the feeds table, keyed
// by url. Feeds removed from the configuration are left in place.
func (store *Store) SyncFeeds(configs []config.FeedConfig) error {
	for _, cfg := range configs {
		_, err := store.db.Exec(`
			INSERT INTO feeds (name, url, has_discussion)
			VALUES (?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				name = excluded.name,
				has_discussion = excluded.has_discussion`,
			cfg.Name,
			cfg.Url,
			cfg.HasDiscussion,
		)
		if err != nil {
			return fmt.Errorf("sync error for feed %q: %w", cfg.Url, err)
		}
	}

	return nil
}

// ListFeeds returns all feeds in creation order
func (store *Store) ListFeeds() ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "url", "has_discussion", "last_fetched", "last_error", "homepage_url").From("feeds")
	sb.OrderBy("id").Asc()

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := store.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	feeds := []models.Feed{}
	for rows.Next() {
		var feed models.Feed
		if err := rows.Scan(&feed.Id, &feed.Name, &feed.Url, &feed.HasDiscussion, &feed.LastFetched, &feed.LastError, &feed.HomepageUrl); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// GetFeed returns the feed with the given id, or nil when it does not exist
func (store *Store) GetFeed(feedId int64) (*models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "url", "has_discussion", "last_fetched", "last_error", "homepage_url").From("feeds")
	sb.Where(sb.Equal("id", feedId))

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var feed models.Feed
	err := store.db.QueryRow(query, args...).Scan(&feed.Id, &feed.Name, &feed.Url, &feed.HasDiscussion, &feed.LastFetched, &feed.LastError, &feed.HomepageUrl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return &feed, nil
}

// UpsertItem inserts an item or, when (feed_id, guid) already exists,
// overwrites its content in place without changing its id.
func (store *Store) UpsertItem(feedId int64, guid string, title string, link string, discussionLink *string, published *time.Time) error {
	var publishedStr *string
	if published != nil {
		formatted := published.UTC().Format(time.RFC3339)
		publishedStr = &formatted
	}

	_, err := store.db.Exec(`
		INSERT INTO items (feed_id, guid, title, link, discussion_link, published)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, guid) DO UPDATE SET
			title = excluded.title,
			link = excluded.link,
			discussion_link = excluded.discussion_link,
			published = excluded.published`,
		feedId,
		guid,
		title,
		link,
		discussionLink,
		publishedStr,
	)
	if err != nil {
		return fmt.Errorf("insert error: %w", err)
	}

	return nil
}

// ListItems returns a page of items for a feed, newest first. Items
// without a published timestamp sort after all dated items, ties break
// on descending insertion id.
func (store *Store) ListItems(feedId int64, limit int, offset int) ([]models.Item, error) {
	rows, err := store.db.Query(`
		SELECT id, feed_id, guid, title, link, discussion_link, published
		FROM items
		WHERE feed_id = ?
		ORDER BY published DESC NULLS LAST, id DESC
		LIMIT ? OFFSET ?`,
		feedId,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.Id, &item.FeedId, &item.Guid, &item.Title, &item.Link, &item.DiscussionLink, &item.Published); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// CountItems returns the total number of items stored for a feed
func (store *Store) CountItems(feedId int64) (int64, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("count(*)").From("items")
	sb.Where(sb.Equal("feed_id", feedId))

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	var count int64
	if err := store.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("query error: %w", err)
	}

	return count, nil
}

// UpdateFeedStatus stamps last_fetched with the current time and records
// the outcome of a fetch attempt. A nil fetchErr clears any previous
// error. The homepage url is only replaced when a new one is supplied.
func (store *Store) UpdateFeedStatus(feedId int64, fetchErr *string, homepageUrl *string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if homepageUrl != nil && *homepageUrl == "" {
		homepageUrl = nil
	}

	log.WithFields(log.Fields{
		"feedId": feedId,
		"error":  fetchErr,
	}).Debug("Updating feed status")

	_, err := store.db.Exec(`
		UPDATE feeds
		SET last_fetched = ?, last_error = ?, homepage_url = COALESCE(?, homepage_url)
		WHERE id = ?`,
		now,
		fetchErr,
		homepageUrl,
		feedId,
	)
	if err != nil {
		return fmt.Errorf("update error: %w", err)
	}

	return nil
}
