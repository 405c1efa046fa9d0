package fetcher

import (
	"bytes"

	"moarnews/models"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
)

// entryLinks adapts a parsed entry's outbound links for the resolver.
// The universal parser flattens links to bare hrefs; when the payload
// is Atom the rel attributes are recovered separately, see relLinks.
func entryLinks(entry *gofeed.Item) []models.EntryLink {
	links := make([]models.EntryLink, 0, len(entry.Links))
	for _, href := range entry.Links {
		links = append(links, models.EntryLink{Href: href})
	}
	return links
}

// relLinks recovers per-link rel attributes from an Atom payload,
// keyed by entry id. The universal parser drops rels, so Atom bytes
// get a second parse with the format-specific parser. Best effort:
// anything unparseable yields an empty map.
func relLinks(raw []byte, feedType string) map[string][]models.EntryLink {
	rels := map[string][]models.EntryLink{}

	if feedType != "atom" {
		return rels
	}

	parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(raw))
	if err != nil {
		return rels
	}

	for _, entry := range parsed.Entries {
		if entry == nil || entry.ID == "" {
			continue
		}
		links := make([]models.EntryLink, 0, len(entry.Links))
		for _, link := range entry.Links {
			if link == nil {
				continue
			}
			links = append(links, models.EntryLink{Href: link.Href, Rel: link.Rel})
		}
		rels[entry.ID] = links
	}

	return rels
}
