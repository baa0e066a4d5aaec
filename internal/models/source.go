package models

// Lean is the political-lean label attached to a Source.
type Lean string

const (
	LeanLeft   Lean = "left"
	LeanCenter Lean = "center"
	LeanRight  Lean = "right"
)

// Leans lists the valid leans in presentation order.
var Leans = []Lean{LeanLeft, LeanCenter, LeanRight}

// Valid reports whether l is one of the known leans.
func (l Lean) Valid() bool {
	switch l {
	case LeanLeft, LeanCenter, LeanRight:
		return true
	}
	return false
}

// Source represents a news outlet we ingest via RSS/Atom.
type Source struct {
	Name     string `json:"name" toml:"name"`
	FeedURL  string `json:"feed_url" toml:"url"`
	Lean     Lean   `json:"lean" toml:"lean"`
	FetchCap int    `json:"fetch_cap,omitempty" toml:"fetch_cap"`
}
