package features

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// TFIDF builds L2-normalized TF-IDF vectors over unigrams and bigrams with
// smoothed inverse document frequency: idf(t) = ln((1+n)/(1+df(t))) + 1.
type TFIDF struct {
	// MaxFeatures caps the vocabulary. Terms are ranked by document
	// frequency, ties broken alphabetically.
	MaxFeatures int
}

// Fit returns one vector per document over a vocabulary learned from docs.
func (v TFIDF) Fit(docs []string) [][]float64 {
	tokenized := make([][]string, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		terms := Terms(doc)
		tokenized[i] = terms
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	vocab := make([]string, 0, len(df))
	for t := range df {
		vocab = append(vocab, t)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if df[vocab[i]] != df[vocab[j]] {
			return df[vocab[i]] > df[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if v.MaxFeatures > 0 && len(vocab) > v.MaxFeatures {
		vocab = vocab[:v.MaxFeatures]
	}
	sort.Strings(vocab)

	index := make(map[string]int, len(vocab))
	idf := make([]float64, len(vocab))
	n := float64(len(docs))
	for i, t := range vocab {
		index[t] = i
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	vectors := make([][]float64, len(docs))
	for d, terms := range tokenized {
		vec := make([]float64, len(vocab))
		for _, t := range terms {
			if i, ok := index[t]; ok {
				vec[i]++
			}
		}
		for i := range vec {
			vec[i] *= idf[i]
		}
		normalize(vec)
		vectors[d] = vec
	}
	return vectors
}

// Terms lowercases text, splits it on anything that is not a letter or
// digit, drops stop words and single-character tokens, and returns the
// remaining unigrams followed by their bigrams.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	unigrams := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		unigrams = append(unigrams, w)
	}

	terms := make([]string, 0, 2*len(unigrams))
	terms = append(terms, unigrams...)
	for i := 1; i < len(unigrams); i++ {
		terms = append(terms, unigrams[i-1]+" "+unigrams[i])
	}
	return terms
}

func normalize(vec []float64) {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

var stopWords = func() map[string]bool {
	words := strings.Fields(`
		a about above after again against all almost alone along already also
		although always am among amongst an and another any anyhow anyone
		anything anyway anywhere are around as at back be became because become
		becomes becoming been before beforehand behind being below beside
		besides between beyond both but by can cannot could couldn did do does
		doing done down due during each eg either else elsewhere enough etc even
		ever every everyone everything everywhere except few first for former
		formerly from further get give go had has hasn have having he hence her
		here hereafter hereby herein hers herself him himself his how however ie
		if in inc indeed into is isn it its itself just keep last latter latterly
		least less ltd made many may me meanwhile might mine more moreover most
		mostly much must my myself namely neither never nevertheless next no
		nobody none noone nor not nothing now nowhere of off often on once one
		only onto or other others otherwise our ours ourselves out over own per
		perhaps please put rather re said same says see seem seemed seeming seems
		several she should since so some somehow someone something sometime
		sometimes somewhere still such than that the their theirs them themselves
		then thence there thereafter thereby therefore therein thereupon these
		they this those though through throughout thru thus to together too
		toward towards under until up upon us very via was we well were what
		whatever when whence whenever where whereafter whereas whereby wherein
		whereupon wherever whether which while whither who whoever whole whom
		whose why will with within without would yet you your yours yourself
		yourselves
	`)
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()
