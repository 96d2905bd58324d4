package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// HybridScorer blends the semantic similarity of a candidate with a lexical
// token-overlap signal. Pure semantic ranking surfaces topically related but
// keyword-irrelevant hits; pure lexical ranking misses paraphrases. The blend
// bounds both failure modes.
type HybridScorer struct {
	alpha float64 // weight on the semantic score, (1-alpha) on the lexical
}

// NewHybridScorer creates a scorer with the given semantic weight.
func NewHybridScorer(alpha float64) *HybridScorer {
	return &HybridScorer{alpha: alpha}
}

// Rescore computes lexical and combined scores for every candidate and
// returns them ordered by combined score descending, ties by ascending id.
func (h *HybridScorer) Rescore(query string, candidates []domain.ScoredResult) []domain.ScoredResult {
	queryTokens := Tokenize(query)

	out := make([]domain.ScoredResult, len(candidates))
	for i, c := range candidates {
		c.LexicalScore = lexicalScore(queryTokens, listingTokens(c.Record))
		c.CombinedScore = h.alpha*c.SemanticScore + (1-h.alpha)*c.LexicalScore
		out[i] = c
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].CombinedScore != out[b].CombinedScore {
			return out[a].CombinedScore > out[b].CombinedScore
		}
		return out[a].Record.ID < out[b].Record.ID
	})
	return out
}

// lexicalScore is the fraction of distinct query tokens present in the
// candidate text, in [0,1].
func lexicalScore(queryTokens, docTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	doc := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		doc[t] = true
	}
	matched := 0
	for _, t := range queryTokens {
		if doc[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func listingTokens(l domain.Listing) []string {
	var b strings.Builder
	b.WriteString(l.Title)
	b.WriteByte('\n')
	b.WriteString(l.Description)
	for _, s := range l.Subjects {
		b.WriteByte('\n')
		b.WriteString(s)
	}
	return Tokenize(b.String())
}

// Tokenize lowercases and splits on anything that is not a letter or digit,
// dropping duplicates while preserving first-seen order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
