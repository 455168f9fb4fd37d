package models

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes the ingestion run that produced an index.
type Manifest struct {
	RunID             string    `yaml:"run_id"`
	CreatedAt         time.Time `yaml:"created_at"`
	EmbeddingProvider string    `yaml:"embedding_provider"`
	EmbeddingModel    string    `yaml:"embedding_model"`
	Dimensions        int       `yaml:"dimensions"`
	Profile           string    `yaml:"profile"`
	ChunkSize         int       `yaml:"chunk_size"`
	ChunkOverlap      int       `yaml:"chunk_overlap"`
	Files             int       `yaml:"files"`
	Pages             int       `yaml:"pages"`
	Chunks            int       `yaml:"chunks"`
}

// EmbeddingIdentity names the embedding space the index was built in.
func (m Manifest) EmbeddingIdentity() string {
	return m.EmbeddingProvider + "/" + m.EmbeddingModel
}

func EncodeManifest(m Manifest) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return m, nil
}
