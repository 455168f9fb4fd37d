package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"lawgpt/internal/config"
	"lawgpt/internal/metrics"
)

// ErrProvider wraps every failure reported by a remote embedding service.
var ErrProvider = errors.New("embedding provider error")

// New creates the embedder named by cfg.Provider, instrumented with
// request metrics.
func New(cfg config.EmbeddingConfig) (embeddings.Embedder, error) {
	var (
		inner embeddings.Embedder
		err   error
	)
	switch cfg.Provider {
	case "ollama":
		inner, err = NewOllamaEmbedder(cfg)
	case "openai":
		inner = NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return &instrumented{inner: inner, provider: cfg.Provider, model: cfg.Model}, nil
}

// NewOllamaEmbedder creates a langchaingo embedder backed by a local Ollama
// server.
func NewOllamaEmbedder(cfg config.EmbeddingConfig) (*embeddings.EmbedderImpl, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm, embeddings.WithBatchSize(max(cfg.BatchSize, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// instrumented records request counts and latency for any embedder.
type instrumented struct {
	inner    embeddings.Embedder
	provider string
	model    string
}

func (e *instrumented) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	e.observe(start, err)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d: %w", len(texts), len(vectors), ErrProvider)
	}
	return vectors, nil
}

func (e *instrumented) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := e.inner.EmbedQuery(ctx, text)
	e.observe(start, err)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query embedding: %w", ErrProvider)
	}
	return vector, nil
}

func (e *instrumented) observe(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, status).Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(time.Since(start).Seconds())
}
