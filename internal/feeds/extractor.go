package feeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// errNoText is returned by a strategy that produced nothing.
var errNoText = errors.New("no text extracted")

// Input is what a strategy works from. The article page is downloaded on
// first use and shared by every later strategy for the same item.
type Input struct {
	Item models.FeedItem

	download func(ctx context.Context) (*Page, error)
	once     sync.Once
	page     *Page
	pageErr  error
}

// NewInput wraps an item with a lazy page download.
func NewInput(item models.FeedItem, download func(ctx context.Context) (*Page, error)) *Input {
	return &Input{Item: item, download: download}
}

// Page returns the downloaded article page, fetching it at most once.
func (in *Input) Page(ctx context.Context) (*Page, error) {
	in.once.Do(func() {
		if in.download == nil {
			in.pageErr = errors.New("no page downloader")
			return
		}
		in.page, in.pageErr = in.download(ctx)
	})
	return in.page, in.pageErr
}

// Strategy is one tier of the extraction chain. Extract either returns text
// or an error; the resolver moves on to the next tier on error or when the
// text is too short.
type Strategy interface {
	Method() models.ExtractionMethod
	Extract(ctx context.Context, in *Input) (string, error)
}

// ReadabilityStrategy extracts the main article body with go-readability.
type ReadabilityStrategy struct{}

func (ReadabilityStrategy) Method() models.ExtractionMethod { return models.MethodReadability }

func (ReadabilityStrategy) Extract(ctx context.Context, in *Input) (string, error) {
	page, err := in.Page(ctx)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(page.Body), page.URL)
	if err != nil {
		return "", fmt.Errorf("readability extraction: %w", err)
	}
	return article.TextContent, nil
}

// noisySelectors are removed before the HTML fallback reads the page.
const noisySelectors = "script, style, nav, footer, header, noscript, aside, form, figure"

// HTMLStrategy is the secondary extractor: it drops page chrome and reads
// the paragraphs of the <article>, <main> or <body> element, in that order
// of preference.
type HTMLStrategy struct{}

func (HTMLStrategy) Method() models.ExtractionMethod { return models.MethodHTML }

func (HTMLStrategy) Extract(ctx context.Context, in *Input) (string, error) {
	page, err := in.Page(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	return htmlText(doc), nil
}

func htmlText(doc *goquery.Document) string {
	doc.Find(noisySelectors).Remove()

	node := doc.Find("article").First()
	if node.Length() == 0 {
		node = doc.Find("main").First()
	}
	if node.Length() == 0 {
		node = doc.Find("body").First()
	}

	var parts []string
	node.Find("p, h1, h2, h3, li, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return node.Text()
	}
	return strings.Join(parts, " ")
}

// ExcerptStrategy falls back to the excerpt supplied by the feed.
type ExcerptStrategy struct{}

func (ExcerptStrategy) Method() models.ExtractionMethod { return models.MethodExcerpt }

func (ExcerptStrategy) Extract(_ context.Context, in *Input) (string, error) {
	if in.Item.Excerpt == "" {
		return "", errNoText
	}
	return in.Item.Excerpt, nil
}
