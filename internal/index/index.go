// Package index selects the vector store backend and guards it against
// being queried with a different embedding model than it was built with.
package index

import (
	"context"
	"fmt"

	"lawgpt/internal/chromemdb"
	"lawgpt/internal/config"
	"lawgpt/internal/db"
	"lawgpt/internal/models"
)

var (
	ErrNotFound      = models.ErrIndexNotFound
	ErrModelMismatch = models.ErrModelMismatch
)

// Backend is a persisted similarity index.
type Backend interface {
	Replace(ctx context.Context, records []models.Record, manifest models.Manifest) error
	Load(ctx context.Context) (models.Manifest, error)
	Search(ctx context.Context, embedding []float32, k int) ([]models.Hit, error)
	Close() error
}

var (
	_ Backend = (*chromemdb.VectorDBManager)(nil)
	_ Backend = (*db.Store)(nil)
)

// Open returns the backend named by cfg.Backend without loading it.
func Open(cfg config.IndexConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendChromem, "":
		return chromemdb.NewVectorDBManager(cfg), nil
	case config.BackendPgvector:
		return db.NewStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

// LoadChecked loads b and fails with a *models.ModelMismatchError when the
// index was built by a different embedder than identity.
func LoadChecked(ctx context.Context, b Backend, identity string) (models.Manifest, error) {
	manifest, err := b.Load(ctx)
	if err != nil {
		return models.Manifest{}, fmt.Errorf("failed to load index: %w", err)
	}
	if manifest.EmbeddingIdentity() != identity {
		return models.Manifest{}, &models.ModelMismatchError{
			Indexed:    manifest.EmbeddingIdentity(),
			Configured: identity,
		}
	}
	return manifest, nil
}
