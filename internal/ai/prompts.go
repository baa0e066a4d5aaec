package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hoanghai1803/spectrum/internal/models"
)

const (
	summaryMaxTokens   = 700
	summaryTemperature = 0.2
	ratingMaxTokens    = 200
)

const summarySystemPrompt = `You are a precise, neutral news summarizer.`

const summaryInstructions = `OUTPUT:
1) Headline (should convey the main thrust of the story)
2) Five bullets (Who/What/Where/When/Why)
3) 3–5 key facts with numbers/dates
4) Where sources agree/disagree (bullets). Only include if >2 distinct sources; cite outlets and lean when noting disagreement.
5) One-paragraph context (most relevant current, historical, economic, political, and/or social)
6) Why this story matters (concise, factual explanation of how this impacts people in daily life)
Be concise, factual, neutral.`

const ratingSystemPrompt = `You are an editor scoring news importance. Output JSON only.`

// SummaryPrompt builds the user prompt for a cross-source story summary.
// Article text is expected to be truncated by the caller.
func SummaryPrompt(articles []StoryArticle) string {
	var b strings.Builder
	b.WriteString("ROLE: Neutral cross-source news summarizer.\n\nSOURCES:\n")
	for _, a := range articles {
		fmt.Fprintf(&b, "- %s (%s): %s\n", a.Source, a.Lean, a.Title)
	}
	b.WriteString("\nARTICLES:\n")
	for i, a := range articles {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		fmt.Fprintf(&b, "[%s|%s] %s\n%s", a.Source, a.Lean, a.Title, a.Text)
	}
	b.WriteString("\n\n")
	b.WriteString(summaryInstructions)
	return b.String()
}

// RatingPrompt builds the user prompt for an importance rating.
func RatingPrompt(bundle string) string {
	var b strings.Builder
	b.WriteString("Rate this news story on seven 1–10 scales. Return ONLY JSON with keys: ")
	b.WriteString(strings.Join(models.Dimensions, ", "))
	b.WriteString(". No prose, no comments.\n\nSTORY:\n")
	b.WriteString(bundle)
	b.WriteString("\n")
	return b.String()
}

// ParseRating decodes an importance rating from a model reply. Missing
// dimensions count as 0 and values are clamped to [0,10] and rounded to one
// decimal. A reply without any known dimension is malformed.
func ParseRating(text string) (map[string]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(extractJSON(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := make(map[string]float64, len(models.Dimensions))
	found := 0
	for _, dim := range models.Dimensions {
		v, ok := toFloat(raw[dim])
		if ok {
			found++
		}
		out[dim] = models.Round(math.Max(0, math.Min(10, v)), 1)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w: no importance keys in reply", ErrMalformedResponse)
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// extractJSON strips markdown code fences from a string that may contain
// JSON wrapped in ```json ... ``` or ``` ... ``` blocks. This handles the
// common case where LLMs return JSON inside code fences.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	// Try ```json ... ``` first.
	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	// Try plain ``` ... ```.
	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	return s
}
