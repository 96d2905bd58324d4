// Command syncd keeps the vector index in step with the system-of-record.
// Runs are triggered over NATS or on a fixed interval; every run summary is
// published for operator review.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/skillswaphq/skillswap-search/engine/domain"
	"github.com/skillswaphq/skillswap-search/engine/semantic"
	"github.com/skillswaphq/skillswap-search/engine/suggest"
	syncsvc "github.com/skillswaphq/skillswap-search/engine/sync"
	"github.com/skillswaphq/skillswap-search/pkg/embed"
	"github.com/skillswaphq/skillswap-search/pkg/fn"
	"github.com/skillswaphq/skillswap-search/pkg/metrics"
	"github.com/skillswaphq/skillswap-search/pkg/natsutil"
	"github.com/skillswaphq/skillswap-search/pkg/repo"
)

// NATS subjects for the sync trigger surface.
const (
	SubjectSyncFull        = "search.sync.full"
	SubjectSyncIncremental = "search.sync.incremental"
	SubjectSyncResult      = "search.sync.result"
)

// incrementalTrigger is the payload of an incremental sync request.
type incrementalTrigger struct {
	Since time.Time `json:"since"`
}

func main() {
	var (
		natsURL    = flag.String("nats", nats.DefaultURL, "NATS server URL")
		dsn        = flag.String("postgres", "postgres://localhost/skillswap?sslmode=disable", "Postgres DSN")
		qdrantAddr = flag.String("qdrant", "localhost:6334", "Qdrant gRPC address")
		collection = flag.String("collection", "listings", "Qdrant collection name")
		endpoint   = flag.String("embed-endpoint", "", "embedding provider base URL")
		model      = flag.String("embed-model", "text-embedding-3-small", "embedding model")
		dims       = flag.Int("embed-dims", 1536, "embedding vector dimension")
		workers    = flag.Int("workers", 4, "sync worker pool size")
		interval   = flag.Duration("interval", 0, "scheduled full-sync interval (0 disables)")
		metricPort = flag.Int("metrics-port", 9091, "metrics listen port")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(runConfig{
		natsURL:    *natsURL,
		dsn:        *dsn,
		qdrantAddr: *qdrantAddr,
		collection: *collection,
		endpoint:   *endpoint,
		model:      *model,
		dims:       *dims,
		workers:    *workers,
		interval:   *interval,
		metricPort: *metricPort,
	}, logger); err != nil {
		logger.Error("syncd exited with error", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	natsURL    string
	dsn        string
	qdrantAddr string
	collection string
	endpoint   string
	model      string
	dims       int
	workers    int
	interval   time.Duration
	metricPort int
}

func run(cfg runConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedder, err := embed.New(embed.Config{
		Endpoint:   cfg.endpoint,
		APIKey:     os.Getenv("EMBED_API_KEY"),
		Model:      cfg.model,
		Dimensions: cfg.dims,
	})
	if err != nil {
		return err
	}

	source, err := repo.Open(cfg.dsn, 0)
	if err != nil {
		return err
	}
	defer source.Close()

	vectorStore, err := semantic.New(cfg.qdrantAddr, cfg.collection)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, cfg.dims); err != nil {
		return err
	}

	nc, err := nats.Connect(cfg.natsURL, nats.Name("skillswap-syncd"))
	if err != nil {
		return err
	}
	defer nc.Drain()

	reg := metrics.New()
	go serveMetrics(reg, cfg.metricPort, logger)

	opts := syncsvc.DefaultOptions()
	opts.Workers = cfg.workers
	opts.Retry = fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Second, MaxWait: 10 * time.Second, Jitter: true}
	svc := syncsvc.New(source, embedder, vectorStore, suggest.NewIndex(), opts, reg, logger)

	runAndReport := func(ctx context.Context, kind string, f func(context.Context) (*domain.SyncRun, error)) {
		logger.Info("sync triggered", "kind", kind)
		run, err := f(ctx)
		if err != nil {
			logger.Error("sync run error", "kind", kind, "err", err)
		}
		if run == nil {
			return
		}
		if pubErr := natsutil.Publish(ctx, nc, SubjectSyncResult, run); pubErr != nil {
			logger.Error("publish run summary failed", "err", pubErr)
		}
	}

	fullSub, err := natsutil.Subscribe(nc, SubjectSyncFull, func(msgCtx context.Context, _ struct{}) {
		runAndReport(msgCtx, "full", svc.SyncAll)
	})
	if err != nil {
		return err
	}
	defer fullSub.Unsubscribe()

	incSub, err := natsutil.Subscribe(nc, SubjectSyncIncremental, func(msgCtx context.Context, t incrementalTrigger) {
		runAndReport(msgCtx, "incremental", func(ctx context.Context) (*domain.SyncRun, error) {
			return svc.SyncIncremental(ctx, t.Since)
		})
	})
	if err != nil {
		return err
	}
	defer incSub.Unsubscribe()

	if cfg.interval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					runAndReport(ctx, "scheduled", svc.SyncAll)
				}
			}
		}()
	}

	logger.Info("syncd ready",
		"nats", cfg.natsURL,
		"collection", cfg.collection,
		"workers", cfg.workers,
		"interval", cfg.interval,
	)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

func serveMetrics(reg *metrics.Registry, port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", reg.Handler())
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		logger.Error("metrics server error", "port", port, "err", err)
	}
}
