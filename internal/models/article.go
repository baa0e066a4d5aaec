package models

import "time"

// ExtractionMethod records how an article's body text was resolved.
type ExtractionMethod string

const (
	MethodCache       ExtractionMethod = "cache"
	MethodReadability ExtractionMethod = "readability"
	MethodHTML        ExtractionMethod = "html"
	MethodExcerpt     ExtractionMethod = "excerpt"
)

// FullText reports whether the method produced full article text rather than
// the feed-supplied excerpt.
func (m ExtractionMethod) FullText() bool {
	return m != MethodExcerpt && m != ""
}

// FeedItem is a single entry read from a source's feed, before its body text
// has been resolved.
type FeedItem struct {
	SourceName  string
	Lean        Lean
	SourceIndex int
	ItemIndex   int
	Title       string
	URL         string
	Excerpt     string
	PublishedAt *time.Time
}

// Article is a feed item with resolved body text. Articles live for a single
// run and are never mutated after ingestion.
type Article struct {
	SourceName  string           `json:"source"`
	Lean        Lean             `json:"lean"`
	SourceIndex int              `json:"-"`
	ItemIndex   int              `json:"-"`
	Title       string           `json:"title"`
	URL         string           `json:"url"`
	Text        string           `json:"-"`
	Excerpt     string           `json:"-"`
	PublishedAt *time.Time       `json:"published_at,omitempty"`
	Method      ExtractionMethod `json:"method"`
}

// Clip returns at most n runes of s.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Body returns the resolved text, or the excerpt when no text was resolved.
func (a Article) Body() string {
	if a.Text != "" {
		return a.Text
	}
	return a.Excerpt
}
