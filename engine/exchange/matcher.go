// Package exchange implements two-sided skill-exchange matching. A good
// match requires mutual relevance: what the requester wants against what the
// candidate offers, and what the requester offers against what the candidate
// wants.
package exchange

import (
	"context"
	"log/slog"
	"sort"

	"github.com/skillswaphq/skillswap-search/engine/domain"
	"github.com/skillswaphq/skillswap-search/engine/search"
	"github.com/skillswaphq/skillswap-search/engine/semantic"
	"github.com/skillswaphq/skillswap-search/pkg/fn"
)

// Embedder vectorizes skill text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the vector index read path.
type Searcher interface {
	Query(ctx context.Context, embedding []float32, limit int, filters map[string]string) ([]semantic.Candidate, error)
}

// Matcher finds counterpart users whose offered and wanted skills align with
// the requester's in both directions.
type Matcher struct {
	embed  Embedder
	index  Searcher
	logger *slog.Logger
}

// NewMatcher creates a Matcher.
func NewMatcher(embed Embedder, index Searcher, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{embed: embed, index: index, logger: logger}
}

type direction struct {
	byRecord map[string]float64
	listings map[string]domain.Listing
}

// Match scores counterpart candidates in both directions and combines the
// two similarities into one match score (their mean). Only complementary
// roles are considered, and the requester's own records are excluded.
func (m *Matcher) Match(ctx context.Context, req domain.Requester, intent domain.ExchangeIntent, limit int) ([]domain.ScoredResult, error) {
	counterpart := req.Role.Complement()

	// The forward pool bounds the result set; fetch it wide enough that
	// reverse-direction hits still land inside it.
	poolSize := limit * 4
	if poolSize > domain.MaxLimit*4 {
		poolSize = domain.MaxLimit * 4
	}

	dirs := fn.FanOutResult(
		func() fn.Result[direction] {
			return m.searchDirection(ctx, intent.Wanted, counterpart, semantic.FacetOffered, poolSize)
		},
		func() fn.Result[direction] {
			return m.searchDirection(ctx, intent.Offered, counterpart, semantic.FacetWanted, poolSize)
		},
	)
	both, err := dirs.Unwrap()
	if err != nil {
		return nil, err
	}
	forward, reverse := both[0], both[1]

	results := make([]domain.ScoredResult, 0, len(forward.byRecord))
	for id, fwd := range forward.byRecord {
		listing := forward.listings[id]
		if listing.OwnerID == req.UserID || listing.Role == req.Role {
			continue
		}
		rev := reverse.byRecord[id] // zero when the reverse side found nothing
		results = append(results, domain.ScoredResult{
			Record:        listing,
			SemanticScore: fwd,
			CombinedScore: (fwd + rev) / 2,
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].CombinedScore != results[b].CombinedScore {
			return results[a].CombinedScore > results[b].CombinedScore
		}
		return results[a].Record.ID < results[b].Record.ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *Matcher) searchDirection(ctx context.Context, text string, role domain.Role, facet string, limit int) fn.Result[direction] {
	dir := direction{
		byRecord: make(map[string]float64),
		listings: make(map[string]domain.Listing),
	}
	if text == "" {
		return fn.Ok(dir)
	}

	vec, err := m.embed.Embed(ctx, text)
	if err != nil {
		return fn.Err[direction](&domain.UpstreamError{Service: "embedder", Err: err})
	}

	candidates, err := m.index.Query(ctx, vec, limit, map[string]string{
		"facet": facet,
		"role":  string(role),
	})
	if err != nil {
		return fn.Err[direction](&domain.UpstreamError{Service: "index", Err: err})
	}

	for _, c := range candidates {
		score := search.NormalizeScore(c.Score)
		if score > dir.byRecord[c.ID] {
			dir.byRecord[c.ID] = score
		}
		dir.listings[c.ID] = c.Listing
	}
	return fn.Ok(dir)
}
