// Package importance scores story candidates on the seven civic importance
// dimensions and filters out those below the publish threshold.
package importance

import (
	"math"
	"regexp"
	"strings"

	"github.com/hoanghai1803/spectrum/internal/models"
)

const (
	heuristicTextChars = 6000
	bundleChars        = 4500
	articleTextChars   = 1000
)

var (
	numberPattern       = regexp.MustCompile(`\b\d{1,4}\b`)
	moneyPattern        = regexp.MustCompile(`\$\d+|\b(billion|million|trillion)\b`)
	geoPattern          = regexp.MustCompile(`\b(us|uk|eu|china|india|russia|state|federal|city|county|province)\b`)
	governmentPattern   = regexp.MustCompile(`\b(white house|congress|senate|parliament|ministry|supreme court|regulator|fcc|sec|ftc)\b`)
	corporatePattern    = regexp.MustCompile(`\b(google|apple|amazon|meta|microsoft|exxon|pfizer|boeing|tesla|ford)\b`)
	conflictPattern     = regexp.MustCompile(`\b(protest|strike|lawsuit|sue|ban|clash|attack|war|sanction|boycott|indict|charges?)\b`)
	publicInfoPattern   = regexp.MustCompile(`\b(how to|deadline|register|apply|eligib|recall|evacuate|boil water|polls? open)\b`)
	wrongdoingPattern   = regexp.MustCompile(`\b(bribe|fraud|corruption|misconduct|cover-?up|whistleblower|leak|investigation|audit)\b`)
	transparencyPattern = regexp.MustCompile(`\b(leaked|unsealed|newly released|foia|internal memo|whistleblower)\b`)
	ramificationPattern = regexp.MustCompile(`\b(precedent|landmark|sweeping|far-?reaching|nationwide|global)\b`)
)

// Signals are the keyword and metadata counts the heuristic is built on.
type Signals struct {
	Size         int
	Diversity    float64
	Numbers      int
	Money        int
	Geo          int
	Government   int
	Corporate    int
	Conflict     int
	PublicInfo   int
	Wrongdoing   int
	Transparency int
	Ramification int
	Civic        bool
}

// Bundle concatenates the title and leading text of every member article,
// capped at limit runes.
func Bundle(story *models.Story, limit int) string {
	parts := make([]string, 0, 2*len(story.Articles))
	for _, a := range story.Articles {
		parts = append(parts, a.Title, models.Clip(a.Body(), articleTextChars))
	}
	return models.Clip(strings.Join(parts, "\n"), limit)
}

// Diversity scales the number of distinct outlets and leans to [0,1].
func Diversity(articles []models.Article) float64 {
	outlets := make(map[string]bool)
	leans := make(map[models.Lean]bool)
	for _, a := range articles {
		outlets[a.SourceName] = true
		leans[a.Lean] = true
	}
	return math.Min(1, (float64(len(outlets))/4+float64(len(leans))/3)/2)
}

// Extract counts the heuristic signals of a story.
func Extract(story *models.Story) Signals {
	text := strings.ToLower(Bundle(story, heuristicTextChars))
	count := func(re *regexp.Regexp) int {
		return len(re.FindAllStringIndex(text, -1))
	}
	return Signals{
		Size:         len(story.Articles),
		Diversity:    Diversity(story.Articles),
		Numbers:      count(numberPattern),
		Money:        count(moneyPattern),
		Geo:          count(geoPattern),
		Government:   count(governmentPattern),
		Corporate:    count(corporatePattern),
		Conflict:     count(conflictPattern),
		PublicInfo:   count(publicInfoPattern),
		Wrongdoing:   count(wrongdoingPattern),
		Transparency: count(transparencyPattern),
		Ramification: count(ramificationPattern),
		Civic:        strings.Contains(text, "vote") || strings.Contains(text, "election"),
	}
}

// Heuristic scores a story from its aggregated text and metadata. It is a
// pure function of the story's member articles.
func Heuristic(story *models.Story) models.ImportanceScores {
	return Score(Extract(story))
}

// Score maps signals to the importance vector. Every dimension is clamped to
// [0,10] and rounded to one decimal.
func Score(s Signals) models.ImportanceScores {
	civic := 0.0
	if s.Civic {
		civic = 0.8
	}
	scores := models.ImportanceScores{
		Impact:                2 + scale(s.Size, 6) + scale(s.Numbers+s.Money+s.Geo, 40) + 3*s.Diversity,
		Conflict:              1 + scale(s.Conflict, 10) + scale(s.Size, 6),
		Ramifications:         1.5 + scale(s.Ramification+s.Government+s.Corporate, 18),
		Accountability:        1 + scale(s.Wrongdoing+s.Government, 12),
		InformedPublic:        1 + scale(s.PublicInfo, 8) + 1.5*s.Diversity,
		CitizenResponsibility: scale(s.PublicInfo, 8) + civic,
		Transparency:          scale(s.Transparency, 6),
	}
	return scores.Clamped()
}

// scale maps a count onto [0,10] where full reaches the maximum.
func scale(n, full int) float64 {
	if full <= 0 {
		return 0
	}
	return math.Max(0, math.Min(10, 10*float64(n)/float64(full)))
}
