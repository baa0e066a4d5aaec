package models

import (
	"math"
	"time"
)

// Dimension names of the importance vector, in serialization order.
const (
	DimImpact                = "impact"
	DimConflict              = "conflict"
	DimRamifications         = "ramifications"
	DimAccountability        = "accountability"
	DimInformedPublic        = "informed_public"
	DimCitizenResponsibility = "citizen_responsibility"
	DimTransparency          = "transparency"
)

// Dimensions lists every importance dimension.
var Dimensions = []string{
	DimImpact,
	DimConflict,
	DimRamifications,
	DimAccountability,
	DimInformedPublic,
	DimCitizenResponsibility,
	DimTransparency,
}

// ImportanceScores is the 7-dimension importance vector of a story. Every
// dimension is bounded to [0,10].
type ImportanceScores struct {
	Impact                float64 `json:"impact"`
	Conflict              float64 `json:"conflict"`
	Ramifications         float64 `json:"ramifications"`
	Accountability        float64 `json:"accountability"`
	InformedPublic        float64 `json:"informed_public"`
	CitizenResponsibility float64 `json:"citizen_responsibility"`
	Transparency          float64 `json:"transparency"`
}

// Values returns the dimensions in Dimensions order.
func (s ImportanceScores) Values() []float64 {
	return []float64{
		s.Impact,
		s.Conflict,
		s.Ramifications,
		s.Accountability,
		s.InformedPublic,
		s.CitizenResponsibility,
		s.Transparency,
	}
}

// Get returns the named dimension and whether the name is known.
func (s ImportanceScores) Get(dim string) (float64, bool) {
	for i, name := range Dimensions {
		if name == dim {
			return s.Values()[i], true
		}
	}
	return 0, false
}

// Set assigns the named dimension. Unknown names are ignored.
func (s *ImportanceScores) Set(dim string, v float64) {
	switch dim {
	case DimImpact:
		s.Impact = v
	case DimConflict:
		s.Conflict = v
	case DimRamifications:
		s.Ramifications = v
	case DimAccountability:
		s.Accountability = v
	case DimInformedPublic:
		s.InformedPublic = v
	case DimCitizenResponsibility:
		s.CitizenResponsibility = v
	case DimTransparency:
		s.Transparency = v
	}
}

// Clamped returns a copy with every dimension bounded to [0,10] and rounded
// to one decimal.
func (s ImportanceScores) Clamped() ImportanceScores {
	var out ImportanceScores
	for i, v := range s.Values() {
		out.Set(Dimensions[i], Round(math.Max(0, math.Min(10, v)), 1))
	}
	return out
}

// Mean returns the arithmetic average of the 7 dimensions, rounded to two
// decimals.
func (s ImportanceScores) Mean() float64 {
	var sum float64
	vals := s.Values()
	for _, v := range vals {
		sum += v
	}
	return Round(sum/float64(len(vals)), 2)
}

// Min returns the lowest dimension.
func (s ImportanceScores) Min() float64 {
	vals := s.Values()
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// SourceRef is one contributing outlet of a published story.
type SourceRef struct {
	Name string `json:"name"`
	Lean Lean   `json:"lean"`
	URL  string `json:"url"`
}

// Story is a cluster of articles covering the same event, with its scores and
// final summary. Articles are kept for the run only and never serialized.
type Story struct {
	ID            string           `json:"story_id"`
	Title         string           `json:"title"`
	Summary       string           `json:"summary"`
	SummaryMethod string           `json:"summary_method,omitempty"`
	Sources       []SourceRef      `json:"sources"`
	Timestamp     time.Time        `json:"timestamp"`
	ClusterSize   int              `json:"cluster_size"`
	Scores        ImportanceScores `json:"importance_scores"`
	Average       float64          `json:"importance_avg"`
	Articles      []Article        `json:"-"`
}

// URLs returns the member article URLs in member order.
func (s *Story) URLs() []string {
	urls := make([]string, len(s.Articles))
	for i, a := range s.Articles {
		urls[i] = a.URL
	}
	return urls
}
