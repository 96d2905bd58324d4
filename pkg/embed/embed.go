// Package embed provides the embedding-provider client used by sync and
// query paths. It speaks the OpenAI-compatible embeddings API.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/skillswaphq/skillswap-search/engine/domain"
)

// Config is the explicit construction-time configuration. Required options
// missing here fail at startup, not on first use.
type Config struct {
	Endpoint   string        // base URL of the provider
	APIKey     string        // required
	Model      string        // required, e.g. "text-embedding-3-small"
	Dimensions int           // output vector dimension, required
	Timeout    time.Duration // per-call timeout, default 10s
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return errors.New("embed: missing api key")
	}
	if c.Model == "" {
		return errors.New("embed: missing model name")
	}
	if c.Dimensions <= 0 {
		return errors.New("embed: missing vector dimensions")
	}
	return nil
}

// Client converts text into fixed-dimension vectors.
type Client struct {
	api     *openai.Client
	model   string
	dims    int
	timeout time.Duration
}

// New creates a Client, validating the Config up front.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}

	return &Client{
		api:     openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		timeout: cfg.Timeout,
	}, nil
}

// Dimensions returns the configured vector dimension.
func (c *Client) Dimensions() int { return c.dims }

// Embed computes the vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch computes vectors for several texts in one provider call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &domain.EmbeddingError{Err: errors.New("no texts")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dims,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, &domain.EmbeddingError{Err: fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))}
	}

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

// classify separates API-level failures (quota, malformed input, timeout),
// which are per-record during sync, from transport failures, which mean the
// provider itself is unreachable and abort the run.
func classify(err error) error {
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr), errors.As(err, &reqErr):
		return &domain.EmbeddingError{Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.EmbeddingError{Err: err}
	default:
		return &domain.EmbeddingError{Err: fmt.Errorf("%w: %v", domain.ErrUnavailable, err)}
	}
}
