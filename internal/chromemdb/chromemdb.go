package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"lawgpt/internal/config"
	"lawgpt/internal/helper"
	"lawgpt/internal/models"
)

const (
	indexFileName    = "index.gob"
	manifestFileName = "manifest.yaml"
)

// VectorDBManager keeps one chromem collection in memory and persists it as
// a single exported file plus a manifest inside the index directory.
type VectorDBManager struct {
	dbPath         string
	collectionName string
	compress       bool
	encryptionKey  string

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	manifest   models.Manifest
}

// NewVectorDBManager creates a manager for the index directory in cfg.Path.
// Nothing is read until Load is called.
func NewVectorDBManager(cfg config.IndexConfig) *VectorDBManager {
	return &VectorDBManager{
		dbPath:         cfg.Path,
		collectionName: cfg.Collection,
		compress:       cfg.Compress,
		encryptionKey:  cfg.EncryptionKey,
	}
}

func (m *VectorDBManager) filePath(dir string) string {
	name := indexFileName
	if m.compress {
		name += ".gz"
	}
	if m.encryptionKey != "" {
		name += ".enc"
	}
	return filepath.Join(dir, name)
}

// Replace builds a new collection from records and swaps it in place of the
// index on disk. On error the previous index is left untouched.
func (m *VectorDBManager) Replace(ctx context.Context, records []models.Record, manifest models.Manifest) error {
	if err := checkDimensions(records, manifest.Dimensions); err != nil {
		return err
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID(),
			Content:   r.Content,
			Metadata:  r.Metadata(),
			Embedding: r.Embedding,
		}
	}
	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
	}

	if err := helper.CreateFolder(filepath.Dir(m.dbPath)); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(filepath.Dir(m.dbPath), "."+filepath.Base(m.dbPath)+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := db.ExportToFile(m.filePath(tmp), m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	data, err := models.EncodeManifest(manifest)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, manifestFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := helper.ReplaceDir(tmp, m.dbPath); err != nil {
		return err
	}
	log.Debug().Str("path", m.dbPath).Int("documents", len(docs)).Msg("Index written")

	m.mu.Lock()
	m.db, m.collection, m.manifest = db, collection, manifest
	m.mu.Unlock()
	return nil
}

// Load reads the index directory into memory and returns its manifest.
func (m *VectorDBManager) Load(_ context.Context) (models.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(m.dbPath, manifestFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Manifest{}, fmt.Errorf("%s: %w", m.dbPath, models.ErrIndexNotFound)
		}
		return models.Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	manifest, err := models.DecodeManifest(data)
	if err != nil {
		return models.Manifest{}, err
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(m.filePath(m.dbPath), m.encryptionKey, m.collectionName); err != nil {
		return models.Manifest{}, fmt.Errorf("failed to import database: %w", err)
	}
	collection := db.GetCollection(m.collectionName, nil)
	if collection == nil {
		return models.Manifest{}, fmt.Errorf("collection %q missing from %s: %w", m.collectionName, m.dbPath, models.ErrIndexNotFound)
	}
	if collection.Count() != manifest.Chunks {
		return models.Manifest{}, fmt.Errorf("index holds %d documents, manifest lists %d", collection.Count(), manifest.Chunks)
	}

	m.mu.Lock()
	m.db, m.collection, m.manifest = db, collection, manifest
	m.mu.Unlock()

	log.Info().Str("path", m.dbPath).Int("documents", collection.Count()).Str("run_id", manifest.RunID).Msg("Index loaded")
	return manifest, nil
}

// Search returns the k most similar chunks, best first. k is clamped to the
// collection size.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int) ([]models.Hit, error) {
	m.mu.RLock()
	collection, dims := m.collection, m.manifest.Dimensions
	m.mu.RUnlock()

	if collection == nil {
		return nil, models.ErrIndexNotFound
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if dims > 0 && len(embedding) != dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(embedding), dims, models.ErrDimensionMismatch)
	}

	n := min(k, collection.Count())
	if n <= 0 {
		return nil, nil
	}
	results, err := collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.Hit, len(results))
	for i, r := range results {
		hits[i] = models.Hit{
			Chunk: models.ChunkFromMetadata(r.Content, r.Metadata),
			Score: r.Similarity,
		}
	}
	return hits, nil
}

// Count is the number of documents in the loaded collection.
func (m *VectorDBManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

func (m *VectorDBManager) Close() error {
	m.mu.Lock()
	m.db, m.collection = nil, nil
	m.mu.Unlock()
	return nil
}

func checkDimensions(records []models.Record, dims int) error {
	for _, r := range records {
		if len(r.Embedding) == 0 || (dims > 0 && len(r.Embedding) != dims) {
			return fmt.Errorf("record %s has %d dimensions, expected %d: %w", r.ID(), len(r.Embedding), dims, models.ErrDimensionMismatch)
		}
	}
	return nil
}
