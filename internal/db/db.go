package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"lawgpt/internal/config"
	"lawgpt/internal/models"
)

const insertBatchSize = 500

type Document struct {
	bun.BaseModel `bun:"table:lawgpt_chunks,alias:d"`
	ID            int64           `bun:"id,pk,autoincrement"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	PageNumber    int             `bun:"page_number,notnull"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float32         `bun:"score,scanonly"`
}

type ManifestRow struct {
	bun.BaseModel `bun:"table:lawgpt_manifest"`
	ID            int    `bun:"id,pk"`
	Body          string `bun:"body,notnull"`
}

// Store keeps the index in Postgres with the pgvector extension.
type Store struct {
	db *bun.DB

	mu       sync.RWMutex
	manifest models.Manifest
	loaded   bool
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

// NewStore opens a connection pool for cfg.PostgresDSN. Connections are made
// lazily.
func NewStore(cfg config.IndexConfig) *Store {
	return &Store{db: NewDB(ConnectDB(cfg.PostgresDSN), cfg.Debug)}
}

func InitDB(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := db.NewCreateTable().Model((*ManifestRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Replace drops and recreates the chunk table and stores the manifest in one
// transaction, so readers see either the old index or the new one.
func (s *Store) Replace(ctx context.Context, records []models.Record, manifest models.Manifest) error {
	for _, r := range records {
		if len(r.Embedding) == 0 || (manifest.Dimensions > 0 && len(r.Embedding) != manifest.Dimensions) {
			return fmt.Errorf("record %s has %d dimensions, expected %d: %w", r.ID(), len(r.Embedding), manifest.Dimensions, models.ErrDimensionMismatch)
		}
	}
	body, err := models.EncodeManifest(manifest)
	if err != nil {
		return err
	}
	if err := InitDB(ctx, s.db); err != nil {
		return err
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := DropDocuments(ctx, tx); err != nil {
			return err
		}
		if _, err := tx.NewCreateTable().Model((*Document)(nil)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create chunk table: %w", err)
		}
		for start := 0; start < len(records); start += insertBatchSize {
			end := min(start+insertBatchSize, len(records))
			if err := StoreDocuments(ctx, tx, records[start:end]); err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().
			Model(&ManifestRow{ID: 1, Body: string(body)}).
			On("CONFLICT (id) DO UPDATE").
			Set("body = EXCLUDED.body").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to store manifest: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.manifest, s.loaded = manifest, true
	s.mu.Unlock()
	log.Debug().Int("documents", len(records)).Msg("Index written to postgres")
	return nil
}

// Load reads and validates the stored manifest.
func (s *Store) Load(ctx context.Context) (models.Manifest, error) {
	var row ManifestRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", 1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUndefinedTable(err) {
			return models.Manifest{}, fmt.Errorf("postgres: %w", models.ErrIndexNotFound)
		}
		return models.Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	manifest, err := models.DecodeManifest([]byte(row.Body))
	if err != nil {
		return models.Manifest{}, err
	}

	count, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		if isUndefinedTable(err) {
			return models.Manifest{}, fmt.Errorf("postgres chunk table: %w", models.ErrIndexNotFound)
		}
		return models.Manifest{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	if count != manifest.Chunks {
		return models.Manifest{}, fmt.Errorf("index holds %d documents, manifest lists %d", count, manifest.Chunks)
	}

	s.mu.Lock()
	s.manifest, s.loaded = manifest, true
	s.mu.Unlock()
	log.Info().Int("documents", count).Str("run_id", manifest.RunID).Msg("Index loaded from postgres")
	return manifest, nil
}

// Search returns the k chunks closest by cosine distance, best first.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]models.Hit, error) {
	s.mu.RLock()
	loaded, dims := s.loaded, s.manifest.Dimensions
	s.mu.RUnlock()

	if !loaded {
		return nil, models.ErrIndexNotFound
	}
	if dims > 0 && len(embedding) != dims {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(embedding), dims, models.ErrDimensionMismatch)
	}
	if k <= 0 {
		return nil, nil
	}

	docs, err := SearchDocuments(ctx, s.db, embedding, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	hits := make([]models.Hit, len(docs))
	for i, d := range docs {
		hits[i] = models.Hit{
			Chunk: models.Chunk{
				Content:    d.Content,
				Source:     d.Source,
				PageNumber: d.PageNumber,
				ChunkID:    d.ChunkID,
			},
			Score: d.Score,
		}
	}
	return hits, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func StoreDocuments(ctx context.Context, db bun.IDB, records []models.Record) error {
	docs := make([]Document, len(records))
	for i, r := range records {
		docs[i] = Document{
			Content:    r.Content,
			Source:     r.Source,
			PageNumber: r.PageNumber,
			ChunkID:    r.ChunkID,
			Embedding:  pgvector.NewVector(r.Embedding),
		}
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

func SearchDocuments(ctx context.Context, db bun.IDB, queryEmbedding []float32, limit int) ([]Document, error) {
	vec := pgvector.NewVector(queryEmbedding)
	var docs []Document
	err := db.NewSelect().
		Model(&docs).
		Column("content", "source", "page_number", "chunk_id").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		OrderExpr("embedding <=> ?", vec).
		OrderExpr("id").
		Limit(limit).
		Scan(ctx)
	return docs, err
}

func DropDocuments(ctx context.Context, db bun.IDB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

func isUndefinedTable(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "42P01"
}
