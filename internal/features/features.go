// Package features turns articles into vectors for clustering, either with a
// local TF-IDF model or with an external embedding provider.
package features

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/spectrum/internal/ai"
	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/retry"
)

// Overflow policies for batches larger than Options.MaxItems.
const (
	OverflowDemote  = "demote"
	OverflowExclude = "exclude"
)

// MethodTFIDF names the local feature path.
const MethodTFIDF = "tfidf"

const textPrefixChars = 600

// Options configures the feature extractor.
type Options struct {
	// MaxItems is the largest batch sent to the embedding provider.
	MaxItems  int
	BatchSize int
	// Overflow decides what happens above MaxItems: OverflowDemote switches
	// the whole run to TF-IDF, OverflowExclude embeds the first MaxItems
	// articles and leaves the rest out of clustering.
	Overflow    string
	MaxFeatures int
	Retry       retry.Policy
}

// Result holds one vector per included article. Included[i] is the index in
// the input slice of the article behind Vectors[i]. Vectors always come from
// a single method.
type Result struct {
	Vectors  [][]float64
	Method   string
	Included []int
}

// Extractor computes article vectors.
type Extractor struct {
	embedder ai.Embedder
	opts     Options
}

// NewExtractor creates an Extractor. A nil embedder always uses TF-IDF.
func NewExtractor(embedder ai.Embedder, opts Options) *Extractor {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 200
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowDemote
	}
	if opts.MaxFeatures <= 0 {
		opts.MaxFeatures = 8000
	}
	return &Extractor{embedder: embedder, opts: opts}
}

// Text is the string each article is vectorized from: its title and the
// first 600 characters of its body.
func Text(a models.Article) string {
	body := []rune(a.Text)
	if len(body) > textPrefixChars {
		body = body[:textPrefixChars]
	}
	return a.Title + " " + string(body)
}

// Extract vectorizes articles. It never fails: any embedding problem falls
// back to TF-IDF over every article.
func (e *Extractor) Extract(ctx context.Context, articles []models.Article) Result {
	if len(articles) == 0 {
		return Result{Method: MethodTFIDF}
	}
	if e.embedder == nil {
		return e.tfidf(articles)
	}

	n := len(articles)
	if n > e.opts.MaxItems {
		if e.opts.Overflow != OverflowExclude {
			slog.Info("embedding batch over limit, using tf-idf",
				"articles", n, "max_items", e.opts.MaxItems, "policy", e.opts.Overflow)
			return e.tfidf(articles)
		}
		slog.Info("embedding batch over limit, excluding overflow from clustering",
			"articles", n, "max_items", e.opts.MaxItems, "excluded", n-e.opts.MaxItems)
		n = e.opts.MaxItems
	}

	texts := make([]string, n)
	for i := range texts {
		texts[i] = Text(articles[i])
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		slog.Warn("embedding failed, using tf-idf for the whole run",
			"provider", e.embedder.Name(), "error", err)
		return e.tfidf(articles)
	}

	included := make([]int, n)
	for i := range included {
		included[i] = i
	}
	for _, v := range vectors {
		normalize(v)
	}
	return Result{Vectors: vectors, Method: "embedding:" + e.embedder.Name(), Included: included}
}

func (e *Extractor) embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.opts.BatchSize {
		end := min(start+e.opts.BatchSize, len(texts))
		var batch [][]float64
		err := e.opts.Retry.Do(ctx, "embed batch", func(ctx context.Context) error {
			vecs, err := e.embedder.Embed(ctx, texts[start:end])
			if err != nil {
				return err
			}
			batch = vecs
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(batch))
		}
		out = append(out, batch...)
	}
	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

var errDimension = errors.New("inconsistent embedding dimensions")

func checkDimensions(vectors [][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return errDimension
	}
	for _, v := range vectors {
		if len(v) != dim {
			return errDimension
		}
	}
	return nil
}

func (e *Extractor) tfidf(articles []models.Article) Result {
	docs := make([]string, len(articles))
	included := make([]int, len(articles))
	for i, a := range articles {
		docs[i] = Text(a)
		included[i] = i
	}
	return Result{
		Vectors:  TFIDF{MaxFeatures: e.opts.MaxFeatures}.Fit(docs),
		Method:   MethodTFIDF,
		Included: included,
	}
}
