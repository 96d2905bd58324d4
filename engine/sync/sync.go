// Package sync keeps the vector index eventually consistent with the
// relational system-of-record. It owns every write to the index; the query
// side only reads.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/skillswaphq/skillswap-search/engine/domain"
	"github.com/skillswaphq/skillswap-search/engine/semantic"
	"github.com/skillswaphq/skillswap-search/pkg/fn"
	"github.com/skillswaphq/skillswap-search/pkg/metrics"
)

// RecordSource is the paginated read surface of the system-of-record.
type RecordSource interface {
	ListActive(ctx context.Context, pageToken string) ([]domain.SourceRecord, string, error)
	ListModifiedSince(ctx context.Context, since time.Time, pageToken string) ([]domain.SourceRecord, string, error)
}

// Embedder vectorizes record text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer is the write surface of the vector index.
type Indexer interface {
	Upsert(ctx context.Context, records []semantic.VectorRecord) error
	DeleteByRecordID(ctx context.Context, recordID string) error
}

// SuggestSink receives autocomplete terms as records are synced.
type SuggestSink interface {
	Put(recordID string, terms []string, weight float64)
	Remove(recordID string)
}

// Options configures a sync Service.
type Options struct {
	Workers       int           // pool size for per-record work, default 4
	RecordTimeout time.Duration // budget for one record, default 15s
	EmbedRate     rate.Limit    // embedding calls per second, default 10
	EmbedBurst    int           // token bucket burst, default Workers
	Retry         fn.RetryOpts  // applied to each embedding call
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:       4,
		RecordTimeout: 15 * time.Second,
		EmbedRate:     10,
		EmbedBurst:    4,
		Retry:         fn.RetryOpts{MaxAttempts: 1},
	}
}

// Service orchestrates full and incremental synchronization runs.
type Service struct {
	source  RecordSource
	embed   Embedder
	index   Indexer
	suggest SuggestSink // optional
	opts    Options
	limiter *rate.Limiter
	running atomic.Bool
	logger  *slog.Logger

	synced   *metrics.Counter
	failed   *metrics.Counter
	inFlight *metrics.Gauge
}

// New creates a sync Service.
func New(source RecordSource, embed Embedder, index Indexer, suggest SuggestSink, opts Options, reg *metrics.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = DefaultOptions().RecordTimeout
	}
	if opts.EmbedRate <= 0 {
		opts.EmbedRate = DefaultOptions().EmbedRate
	}
	if opts.EmbedBurst <= 0 {
		opts.EmbedBurst = opts.Workers
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Service{
		source:   source,
		embed:    embed,
		index:    index,
		suggest:  suggest,
		opts:     opts,
		limiter:  rate.NewLimiter(opts.EmbedRate, opts.EmbedBurst),
		logger:   logger,
		synced:   reg.Counter("sync_records_total", "Records successfully synced"),
		failed:   reg.Counter("sync_record_errors_total", "Records that failed to sync"),
		inFlight: reg.Gauge("sync_in_progress", "Whether a sync run is active"),
	}
}

// SyncAll performs a full resynchronization of every source record.
func (s *Service) SyncAll(ctx context.Context) (*domain.SyncRun, error) {
	return s.run(ctx, s.source.ListActive)
}

// SyncIncremental processes only records modified after since.
func (s *Service) SyncIncremental(ctx context.Context, since time.Time) (*domain.SyncRun, error) {
	return s.run(ctx, func(ctx context.Context, pageToken string) ([]domain.SourceRecord, string, error) {
		return s.source.ListModifiedSince(ctx, since, pageToken)
	})
}

type pageFn func(ctx context.Context, pageToken string) ([]domain.SourceRecord, string, error)

// run streams source pages and processes records with bounded parallelism.
// Per-record failures are accounted and skipped; a connection-level failure
// of an external service aborts the run with the counts gathered so far.
func (s *Service) run(ctx context.Context, nextPage pageFn) (*domain.SyncRun, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrSyncInProgress
	}
	defer s.running.Store(false)
	s.inFlight.Set(1)
	defer s.inFlight.Set(0)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	acc := &accumulator{}
	var fatal fatalFlag

	pool, err := ants.NewPool(s.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("sync: worker pool: %w", err)
	}
	defer pool.Release()

	started := time.Now().UTC()
	pageToken := ""
	for {
		records, next, err := nextPage(runCtx, pageToken)
		if err != nil {
			fatal.set(err)
			break
		}

		var wg sync.WaitGroup
		for _, rec := range records {
			rec := rec
			wg.Add(1)
			submitErr := pool.Submit(func() {
				defer wg.Done()
				if runCtx.Err() != nil {
					return // run already aborted, leave the record unattempted
				}
				s.processRecord(runCtx, rec, acc, &fatal, cancel)
			})
			if submitErr != nil {
				wg.Done()
				acc.fail(rec.ID, fmt.Errorf("submit: %w", submitErr))
			}
		}
		wg.Wait()

		if fatal.get() != nil || next == "" {
			break
		}
		pageToken = next
	}

	run := acc.finalize(started)
	s.synced.Add(int64(run.SuccessCount))
	s.failed.Add(int64(run.ErrorCount))
	s.logger.Info("sync run finished",
		"attempted", run.Attempted,
		"success", run.SuccessCount,
		"errors", run.ErrorCount,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)

	if err := fatal.get(); err != nil {
		return run, fmt.Errorf("sync aborted: %w", err)
	}
	return run, nil
}

// processRecord handles one record end to end and accounts the outcome.
func (s *Service) processRecord(ctx context.Context, rec domain.SourceRecord, acc *accumulator, fatal *fatalFlag, abort context.CancelFunc) {
	recCtx, cancel := context.WithTimeout(ctx, s.opts.RecordTimeout)
	defer cancel()

	err := s.syncOne(recCtx, rec)
	switch {
	case err == nil:
		acc.ok()
	case errors.Is(err, context.Canceled):
		// Aborted mid-flight by a fatal failure elsewhere; not attempted.
	case errors.Is(err, domain.ErrUnavailable):
		fatal.set(err)
		abort()
	default:
		s.logger.Warn("sync record failed", "record_id", rec.ID, "err", err)
		acc.fail(rec.ID, err)
	}
}

// syncOne deletes an inactive record or embeds and upserts an active one.
func (s *Service) syncOne(ctx context.Context, rec domain.SourceRecord) error {
	ctx, span := otel.Tracer("engine/sync").Start(ctx, "sync.record")
	defer span.End()

	if !rec.Active {
		if err := s.index.DeleteByRecordID(ctx, rec.ID); err != nil {
			return err
		}
		if s.suggest != nil {
			s.suggest.Remove(rec.ID)
		}
		return nil
	}

	points, err := s.buildPoints(ctx, rec)
	if err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, points); err != nil {
		return err
	}
	if s.suggest != nil {
		s.suggest.Put(rec.ID, suggestTerms(rec), float64(rec.LastModifiedAt.Unix()))
	}
	return nil
}

// buildPoints embeds every non-empty facet of the record. Embedding calls
// share the run's rate limiter.
func (s *Service) buildPoints(ctx context.Context, rec domain.SourceRecord) ([]semantic.VectorRecord, error) {
	facets := []struct {
		name string
		text string
	}{
		{semantic.FacetListing, rec.CanonicalText()},
		{semantic.FacetOffered, rec.OfferedSkills},
		{semantic.FacetWanted, rec.WantedSkills},
	}

	points := make([]semantic.VectorRecord, 0, len(facets))
	for _, f := range facets {
		if f.name != semantic.FacetListing && f.text == "" {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		text := f.text
		res := fn.Retry(ctx, s.opts.Retry, func(ctx context.Context) fn.Result[[]float32] {
			return fn.FromPair(s.embed.Embed(ctx, text))
		})
		vec, err := res.Unwrap()
		if err != nil {
			return nil, err
		}
		points = append(points, semantic.VectorRecord{
			PointID:   PointID(rec.ID, f.name),
			Embedding: vec,
			Payload:   semantic.ListingPayload(rec, f.name),
		})
	}
	return points, nil
}

// PointID derives a stable point id from the record id and facet, so that
// re-running a sync overwrites points in place.
func PointID(recordID, facet string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID+"/"+facet)).String()
}

func suggestTerms(rec domain.SourceRecord) []string {
	terms := make([]string, 0, 1+len(rec.Subjects))
	if rec.Title != "" {
		terms = append(terms, rec.Title)
	}
	terms = append(terms, rec.Subjects...)
	return terms
}

// fatalFlag records the first run-level error.
type fatalFlag struct {
	mu  sync.Mutex
	err error
}

func (f *fatalFlag) set(err error) {
	f.mu.Lock()
	if f.err == nil {
		f.err = err
	}
	f.mu.Unlock()
}

func (f *fatalFlag) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
