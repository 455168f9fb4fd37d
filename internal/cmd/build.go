package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"lawgpt/internal/config"
	"lawgpt/internal/embedding"
	"lawgpt/internal/index"
	"lawgpt/internal/llmservice"
	"lawgpt/internal/metrics"
	"lawgpt/internal/rag"
)

// app is a loaded query pipeline and the resources it holds.
type app struct {
	*rag.RAG
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// buildEmbedder returns the configured embedder, wrapped in the Redis cache
// when one is configured and reachable.
func buildEmbedder(ctx context.Context, c *config.Config) (embeddings.Embedder, func(), error) {
	embedder, err := embedding.New(c.Embedding)
	if err != nil {
		return nil, nil, err
	}
	if !c.Cache.Enabled() {
		return embedder, func() {}, nil
	}

	store, err := embedding.NewRedisStore(c.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("Embedding cache disabled")
		return embedder, func() {}, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Strs("addrs", c.Cache.Addrs).Msg("Embedding cache unreachable, continuing without it")
		store.Close()
		return embedder, func() {}, nil
	}
	log.Info().Strs("addrs", c.Cache.Addrs).Msg("Embedding cache enabled")
	return embedding.NewCachedEmbedder(embedder, store, c.Embedding.Identity()), store.Close, nil
}

// buildApp loads the index and wires the query pipeline.
func buildApp(ctx context.Context, c *config.Config) (*app, error) {
	metrics.Register()
	a := &app{}

	embedder, closeEmbedder, err := buildEmbedder(ctx, c)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeEmbedder)

	backend, err := index.Open(c.Index)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = backend.Close() })

	manifest, err := index.LoadChecked(ctx, backend, c.Embedding.Identity())
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Info().
		Str("run_id", manifest.RunID).
		Str("embedding", manifest.EmbeddingIdentity()).
		Int("chunks", manifest.Chunks).
		Time("created_at", manifest.CreatedAt).
		Msg("Using index")

	generator, err := llmservice.New(ctx, c.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.RAG = rag.NewRAG(embedder, backend, generator, c.RAG.TopK)
	log.Info().Str("llm", fmt.Sprintf("%s/%s", c.LLM.Provider, c.LLM.Model)).Int("top_k", c.RAG.TopK).Msg("Query pipeline ready")
	return a, nil
}
