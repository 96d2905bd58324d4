// Package main implements the search API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/skillswaphq/skillswap-search/engine/domain"
	"github.com/skillswaphq/skillswap-search/engine/exchange"
	"github.com/skillswaphq/skillswap-search/engine/search"
	"github.com/skillswaphq/skillswap-search/engine/semantic"
	"github.com/skillswaphq/skillswap-search/engine/suggest"
	syncsvc "github.com/skillswaphq/skillswap-search/engine/sync"
	"github.com/skillswaphq/skillswap-search/pkg/embed"
	"github.com/skillswaphq/skillswap-search/pkg/metrics"
	"github.com/skillswaphq/skillswap-search/pkg/mid"
	"github.com/skillswaphq/skillswap-search/pkg/repo"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	PostgresDSN   string
	QdrantURL     string
	Collection    string
	EmbedEndpoint string
	EmbedAPIKey   string
	EmbedModel    string
	EmbedDims     int
	CORSOrigin    string
}

func loadConfig() Config {
	dims, _ := strconv.Atoi(envOr("EMBED_DIMENSIONS", "1536"))
	return Config{
		Port:          envOr("PORT", "8080"),
		PostgresDSN:   envOr("POSTGRES_DSN", "postgres://localhost/skillswap?sslmode=disable"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "listings"),
		EmbedEndpoint: os.Getenv("EMBED_ENDPOINT"),
		EmbedAPIKey:   os.Getenv("EMBED_API_KEY"),
		EmbedModel:    envOr("EMBED_MODEL", "text-embedding-3-small"),
		EmbedDims:     dims,
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Embedding provider ---
	embedder, err := embed.New(embed.Config{
		Endpoint:   cfg.EmbedEndpoint,
		APIKey:     cfg.EmbedAPIKey,
		Model:      cfg.EmbedModel,
		Dimensions: cfg.EmbedDims,
	})
	if err != nil {
		return err
	}

	// --- Connect to Postgres (system-of-record, read-only) ---
	source, err := repo.Open(cfg.PostgresDSN, 0)
	if err != nil {
		return err
	}
	defer source.Close()

	// --- Connect to Qdrant ---
	vectorStore, err := semantic.New(cfg.QdrantURL, cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return err
	}

	// --- Build services ---
	reg := metrics.New()
	suggestIndex := suggest.NewIndex()
	syncService := syncsvc.New(source, embedder, vectorStore, suggestIndex, syncsvc.DefaultOptions(), reg, logger)
	matcher := exchange.NewMatcher(embedder, vectorStore, logger)
	gateway := search.New(embedder, vectorStore, suggestIndex, matcher, search.DefaultOptions(), logger)

	queryDur := reg.Histogram("search_query_duration_seconds", "Query latency", nil)

	// --- Build HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/search", handleSearch(gateway, queryDur, logger))
	mux.HandleFunc("GET /api/suggest", handleSuggest(gateway))
	mux.HandleFunc("POST /api/exchange/match", handleExchange(gateway, logger))
	mux.HandleFunc("POST /api/admin/sync", handleSync(syncService, logger))
	mux.Handle("GET /metrics", reg.Handler())

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("skillswap-search"),
		mid.Requester(),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleSearch(gw *search.Gateway, dur *metrics.Histogram, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q domain.SearchQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		start := time.Now()
		rs, err := gw.Execute(r.Context(), mid.RequesterFrom(r.Context()), q)
		dur.Since(start)
		if err != nil {
			writeQueryError(w, err, logger)
			return
		}
		writeJSON(w, rs)
	}
}

func handleSuggest(gw *search.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 10
		}
		rs, err := gw.Execute(r.Context(), mid.RequesterFrom(r.Context()), domain.SearchQuery{
			Text:  r.URL.Query().Get("q"),
			Mode:  domain.ModeAutocomplete,
			Limit: limit,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, rs)
	}
}

// ExchangeRequest is the JSON body for POST /api/exchange/match.
type ExchangeRequest struct {
	Offered string `json:"offered"`
	Wanted  string `json:"wanted"`
	Limit   int    `json:"limit"`
}

func handleExchange(gw *search.Gateway, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExchangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Limit <= 0 {
			req.Limit = 10
		}
		rs, err := gw.Execute(r.Context(), mid.RequesterFrom(r.Context()), domain.SearchQuery{
			Text:    req.Wanted,
			Mode:    domain.ModeExchange,
			Filters: map[string]string{"offered": req.Offered},
			Limit:   req.Limit,
		})
		if err != nil {
			writeQueryError(w, err, logger)
			return
		}
		writeJSON(w, rs)
	}
}

func handleSync(svc *syncsvc.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var run *domain.SyncRun
		var err error
		if since := r.URL.Query().Get("since"); since != "" {
			t, parseErr := time.Parse(time.RFC3339, since)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "since must be RFC3339")
				return
			}
			run, err = svc.SyncIncremental(r.Context(), t)
		} else {
			run, err = svc.SyncAll(r.Context())
		}

		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			writeError(w, http.StatusConflict, "sync already in progress")
			return
		case err != nil:
			// A partial run still carries useful counts for the operator.
			logger.Error("sync failed", "err", err)
			if run == nil {
				writeError(w, http.StatusBadGateway, "sync failed")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			json.NewEncoder(w).Encode(run)
			return
		}
		writeJSON(w, run)
	}
}

func writeQueryError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var valErr *domain.ValidationError
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, valErr.Error())
	case errors.As(err, &upErr):
		logger.Error("query upstream failure", "err", err)
		writeError(w, http.StatusBadGateway, "search unavailable")
	default:
		logger.Error("query failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
