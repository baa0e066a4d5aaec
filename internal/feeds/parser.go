package feeds

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/mmcdole/gofeed"
)

var (
	htmlTagPattern    = regexp.MustCompile("<[^>]*>")
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// parseFeedItems converts the first limit gofeed items into feed items.
// Items with empty Title or Link are skipped. ItemIndex keeps the item's
// position in the feed.
func parseFeedItems(sourceIndex int, source models.Source, feed *gofeed.Feed, limit, excerptChars int) []models.FeedItem {
	var items []models.FeedItem
	for i, item := range feed.Items {
		if i >= limit {
			break
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			t := item.PublishedParsed.UTC()
			publishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := item.UpdatedParsed.UTC()
			publishedAt = &t
		}

		excerpt := item.Description
		if strings.TrimSpace(excerpt) == "" {
			excerpt = item.Content
		}

		items = append(items, models.FeedItem{
			SourceName:  source.Name,
			Lean:        source.Lean,
			SourceIndex: sourceIndex,
			ItemIndex:   i,
			Title:       title,
			URL:         link,
			Excerpt:     truncateRunes(cleanText(stripHTML(excerpt)), excerptChars),
			PublishedAt: publishedAt,
		})
	}
	return items
}

// stripHTML removes HTML tags from s and unescapes HTML entities.
func stripHTML(s string) string {
	clean := htmlTagPattern.ReplaceAllString(s, " ")
	return html.UnescapeString(clean)
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// truncateRunes returns at most n runes of s.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
