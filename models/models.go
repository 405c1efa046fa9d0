package models

// Feed is a configured syndication source polled by the fetcher
type Feed struct {
	Id            int64   `json:"id"`
	Name          string  `json:"name"`
	Url           string  `json:"url"`
	HasDiscussion bool    `json:"hasDiscussion"`
	LastFetched   *string `json:"lastFetched,omitempty"`
	LastError     *string `json:"lastError,omitempty"`
	HomepageUrl   *string `json:"homepageUrl,omitempty"`
}

// Item is one ingested article, deduplicated on (feed, guid)
type Item struct {
	Id             int64   `json:"id"`
	FeedId         int64   `json:"feedId"`
	Guid           string  `json:"guid"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	DiscussionLink *string `json:"discussionLink,omitempty"`
	Published      *string `json:"published,omitempty"`
}

// EntryLink is an outbound link on a parsed entry with its optional
// relation tag ("replies", "comments", ...)
type EntryLink struct {
	Href string
	Rel  string
}
