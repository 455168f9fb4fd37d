package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"lawgpt/internal/chromemdb"
	"lawgpt/internal/config"
	"lawgpt/internal/models"
)

func TestOpen(t *testing.T) {
	if b, err := Open(config.IndexConfig{Backend: config.BackendChromem}); err != nil {
		t.Fatal(err)
	} else if _, ok := b.(*chromemdb.VectorDBManager); !ok {
		t.Errorf("expected chromem backend, got %T", b)
	}
	if _, err := Open(config.IndexConfig{Backend: "faiss"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestLoadChecked(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Index
	cfg.Path = filepath.Join(t.TempDir(), "vectorstore")
	b, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := LoadChecked(ctx, b, "ollama/all-minilm"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	records := []models.Record{{
		Chunk:     models.Chunk{Content: "text", Source: "a.pdf", PageNumber: 1, ChunkID: 1},
		Embedding: []float32{1, 0},
	}}
	manifest := models.Manifest{EmbeddingProvider: "ollama", EmbeddingModel: "all-minilm", Dimensions: 2, Chunks: 1}
	if err := b.Replace(ctx, records, manifest); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadChecked(ctx, b, "ollama/all-minilm"); err != nil {
		t.Errorf("expected matching identity to load, got %v", err)
	}

	_, err = LoadChecked(ctx, b, "openai/text-embedding-3-small")
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
	var mismatch *models.ModelMismatchError
	if !errors.As(err, &mismatch) || mismatch.Indexed != "ollama/all-minilm" {
		t.Errorf("expected mismatch details, got %v", err)
	}
}
