package models

import (
	"errors"
	"testing"
	"time"
)

func TestChunkMetadataRoundTrip(t *testing.T) {
	c := Chunk{Content: "text", Source: "dataset/a.pdf", PageNumber: 3, ChunkID: 7}

	got := ChunkFromMetadata(c.Content, c.Metadata())
	if got != c {
		t.Fatalf("expected %+v, got %+v", c, got)
	}
	if c.ID() != "dataset/a.pdf#p3-c7" {
		t.Errorf("unexpected id %q", c.ID())
	}
}

func TestChunkFromMetadata_BadNumbers(t *testing.T) {
	got := ChunkFromMetadata("x", map[string]string{MetaSource: "s", MetaPage: "two"})
	if got.PageNumber != 0 || got.ChunkID != 0 {
		t.Errorf("expected zero page and chunk id, got %+v", got)
	}
}

func TestManifestEncodeDecode(t *testing.T) {
	m := Manifest{
		RunID:             "run-1",
		CreatedAt:         time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		EmbeddingProvider: "ollama",
		EmbeddingModel:    "all-minilm",
		Dimensions:        384,
		Profile:           "standard",
		ChunkSize:         800,
		ChunkOverlap:      200,
		Chunks:            12,
	}
	data, err := EncodeManifest(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeManifest(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.CreatedAt.Equal(m.CreatedAt) {
		t.Errorf("created_at: expected %v, got %v", m.CreatedAt, got.CreatedAt)
	}
	got.CreatedAt = m.CreatedAt
	if got != m {
		t.Errorf("expected %+v, got %+v", m, got)
	}
	if got.EmbeddingIdentity() != "ollama/all-minilm" {
		t.Errorf("unexpected identity %q", got.EmbeddingIdentity())
	}
}

func TestModelMismatchError_Unwrap(t *testing.T) {
	err := error(&ModelMismatchError{Indexed: "a/b", Configured: "c/d"})
	if !errors.Is(err, ErrModelMismatch) {
		t.Fatal("expected errors.Is ErrModelMismatch")
	}
}
