// Package search implements the query gateway: validation, mode dispatch,
// semantic search, and hybrid re-ranking over the vector index.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/skillswaphq/skillswap-search/engine/domain"
	"github.com/skillswaphq/skillswap-search/engine/semantic"
	"github.com/skillswaphq/skillswap-search/pkg/resilience"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts the vector index read path.
type Searcher interface {
	Query(ctx context.Context, embedding []float32, limit int, filters map[string]string) ([]semantic.Candidate, error)
}

// Suggester serves autocomplete prefixes.
type Suggester interface {
	Suggest(prefix string, limit int) []string
}

// ExchangeMatcher runs two-sided skill matching.
type ExchangeMatcher interface {
	Match(ctx context.Context, req domain.Requester, intent domain.ExchangeIntent, limit int) ([]domain.ScoredResult, error)
}

// Options configures the gateway.
type Options struct {
	Alpha         float64       // hybrid weight on the semantic score
	CandidateCap  int           // upper bound on the hybrid candidate pool
	QueryTimeout  time.Duration // per-request budget for external calls
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Alpha:        0.6,
		CandidateCap: 100,
		QueryTimeout: 5 * time.Second,
	}
}

// Gateway is the single entry point for search requests. It only ever reads
// from the index; writes belong to the sync service.
type Gateway struct {
	embed    Embedder
	index    Searcher
	scorer   *HybridScorer
	suggest  Suggester
	exchange ExchangeMatcher
	breaker  *resilience.Breaker
	opts     Options
	logger   *slog.Logger
}

// New creates a Gateway.
func New(embed Embedder, index Searcher, suggest Suggester, exchange ExchangeMatcher, opts Options, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Alpha <= 0 || opts.Alpha > 1 {
		opts.Alpha = DefaultOptions().Alpha
	}
	if opts.CandidateCap <= 0 {
		opts.CandidateCap = DefaultOptions().CandidateCap
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultOptions().QueryTimeout
	}
	return &Gateway{
		embed:    embed,
		index:    index,
		scorer:   NewHybridScorer(opts.Alpha),
		suggest:  suggest,
		exchange: exchange,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:     opts,
		logger:   logger,
	}
}

// Execute validates the query and dispatches on mode. Ordering is
// deterministic for a fixed index state: score ties break by ascending id.
func (g *Gateway) Execute(ctx context.Context, req domain.Requester, q domain.SearchQuery) (*domain.ResultSet, error) {
	if err := domain.ValidateQuery(q); err != nil {
		return nil, err
	}
	q.Limit = domain.ClampLimit(q.Limit)

	ctx, cancel := context.WithTimeout(ctx, g.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		g.logger.Info("query", "mode", q.Mode, "limit", q.Limit, "duration", time.Since(start))
	}()

	switch q.Mode {
	case domain.ModeSemantic:
		results, err := g.semantic(ctx, q, q.Limit)
		if err != nil {
			return nil, err
		}
		return &domain.ResultSet{Mode: q.Mode, Results: results}, nil

	case domain.ModeHybrid:
		results, err := g.hybrid(ctx, q)
		if err != nil {
			return nil, err
		}
		return &domain.ResultSet{Mode: q.Mode, Results: results}, nil

	case domain.ModeAutocomplete:
		terms := g.suggest.Suggest(q.Text, q.Limit)
		return &domain.ResultSet{Mode: q.Mode, Results: []domain.ScoredResult{}, Suggestions: terms}, nil

	case domain.ModeExchange:
		intent, err := parseExchangeIntent(req, q)
		if err != nil {
			return nil, err
		}
		results, err := g.exchange.Match(ctx, req, intent, q.Limit)
		if err != nil {
			return nil, err
		}
		return &domain.ResultSet{Mode: q.Mode, Results: results}, nil
	}

	// ValidateQuery already rejected anything else.
	return nil, domain.NewValidationError("mode", string(q.Mode), domain.ErrUnknownMode)
}

// semantic embeds the query and runs a filtered nearest-neighbor search.
// Embedding failure fails the whole query: callers must be able to tell
// "no matches" from "search unavailable".
func (g *Gateway) semantic(ctx context.Context, q domain.SearchQuery, limit int) ([]domain.ScoredResult, error) {
	var vec []float32
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var embedErr error
		vec, embedErr = g.embed.Embed(ctx, q.Text)
		return embedErr
	})
	if err != nil {
		return nil, &domain.UpstreamError{Service: "embedder", Err: err}
	}

	filters := map[string]string{"facet": semantic.FacetListing}
	for k, v := range q.Filters {
		filters[k] = v
	}

	candidates, err := g.index.Query(ctx, vec, limit, filters)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "index", Err: err}
	}

	results := make([]domain.ScoredResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.ScoredResult{
			Record:        c.Listing,
			SemanticScore: NormalizeScore(c.Score),
		}
	}
	sortBySemantic(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// hybrid builds an expanded semantic candidate pool and re-ranks it with the
// lexical signal. An empty pool returns an empty result; there is no fallback
// to a full lexical scan.
func (g *Gateway) hybrid(ctx context.Context, q domain.SearchQuery) ([]domain.ScoredResult, error) {
	k := q.Limit * 4
	if k < q.Limit {
		k = q.Limit
	}
	if k > g.opts.CandidateCap {
		k = g.opts.CandidateCap
	}

	pool, err := g.semantic(ctx, q, k)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return []domain.ScoredResult{}, nil
	}

	rescored := g.scorer.Rescore(q.Text, pool)
	if len(rescored) > q.Limit {
		rescored = rescored[:q.Limit]
	}
	return rescored, nil
}

func parseExchangeIntent(req domain.Requester, q domain.SearchQuery) (domain.ExchangeIntent, error) {
	if req.Anonymous() {
		return domain.ExchangeIntent{}, domain.NewValidationError("requester", "", fmt.Errorf("exchange matching requires a signed-in requester"))
	}
	intent := domain.ExchangeIntent{
		Wanted:  strings.TrimSpace(q.Text),
		Offered: strings.TrimSpace(q.Filters["offered"]),
	}
	if intent.Offered == "" {
		intent.Offered = intent.Wanted
	}
	return intent, nil
}

// NormalizeScore maps a cosine similarity in [-1,1] to [0,1].
func NormalizeScore(s float32) float64 {
	v := (float64(s) + 1) / 2
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sortBySemantic(results []domain.ScoredResult) {
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].SemanticScore != results[b].SemanticScore {
			return results[a].SemanticScore > results[b].SemanticScore
		}
		return results[a].Record.ID < results[b].Record.ID
	})
}
