package fetcher

import (
	"strings"
	"unicode/utf8"
)

// ExtractComments recovers <comments> urls from raw RSS bytes, keyed by
// the item's <link>. The generic feed parser drops the <comments>
// element, so this re-scans the original payload. It is a best-effort
// substring scan, not an XML parse: malformed or truncated items are
// tolerated and anything unreadable yields an empty map.
func ExtractComments(raw []byte) map[string]string {
	comments := map[string]string{}

	if !utf8.Valid(raw) {
		return comments
	}
	xml := string(raw)

	blocks := strings.Split(xml, "<item>")
	for _, block := range blocks[1:] {
		// A missing </item> on the last block still gets scanned
		if end := strings.Index(block, "</item>"); end >= 0 {
			block = block[:end]
		}

		link, ok := extractElement(block, "link")
		if !ok {
			continue
		}
		comment, ok := extractElement(block, "comments")
		if !ok {
			continue
		}

		comments[link] = comment
	}

	return comments
}

// extractElement returns the trimmed text of the first <tag>...</tag>
// occurrence in xml
func extractElement(xml string, tag string) (string, bool) {
	startTag := "<" + tag + ">"
	endTag := "</" + tag + ">"

	start := strings.Index(xml, startTag)
	if start < 0 {
		return "", false
	}
	start += len(startTag)

	end := strings.Index(xml[start:], endTag)
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(xml[start : start+end]), true
}
