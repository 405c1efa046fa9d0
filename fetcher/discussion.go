package fetcher

import (
	"strings"

	"moarnews/models"
)

// discussionHost describes a platform whose entry ids are themselves
// discussion-thread urls
type discussionHost struct {
	// Substring of the feed's source url identifying the platform
	feedUrl string
	// Substring marking a discussion-thread url on that platform
	threadUrl string
}

var discussionHosts = []discussionHost{
	{feedUrl: "news.ycombinator.com", threadUrl: "news.ycombinator.com/item?id="},
	{feedUrl: "lobste.rs", threadUrl: "lobste.rs/s/"},
}

// ResolveDiscussionLink maps a parsed entry to its discussion url, if
// any. Strategies are tried in fixed precedence:
//
//  1. Feeds without the discussion capability never get one.
//  2. On known discussion platforms the entry's guid is the thread url;
//     a post whose article link already is the thread (e.g. Ask HN)
//     gets none, the article and discussion are the same page.
//  3. A <comments> url recovered from the raw payload for this article.
//  4. An outbound link tagged rel "replies" or "comments".
//
// Platform identity outranks the generic signals because a known
// platform guid is unambiguous while <comments> and rel tags can be
// absent or mis-tagged.
func ResolveDiscussionLink(feed models.Feed, guid string, links []models.EntryLink, extractedComments string, mainLink string) *string {
	if !feed.HasDiscussion {
		return nil
	}

	for _, host := range discussionHosts {
		if !strings.Contains(feed.Url, host.feedUrl) {
			continue
		}
		if strings.Contains(mainLink, host.threadUrl) {
			return nil
		}
		if strings.Contains(guid, host.threadUrl) {
			return &guid
		}
	}

	if extractedComments != "" {
		return &extractedComments
	}

	for _, link := range links {
		rel := strings.ToLower(link.Rel)
		if rel == "replies" || rel == "comments" {
			href := link.Href
			return &href
		}
	}

	return nil
}
