// Package ingest turns a directory of PDFs into a persisted similarity index.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"lawgpt/internal/config"
	"lawgpt/internal/helper"
	"lawgpt/internal/metrics"
	"lawgpt/internal/models"
	"lawgpt/internal/parser"
)

var (
	// ErrNoDocuments means no page could be loaded from the dataset.
	ErrNoDocuments = errors.New("no documents loaded")
	// ErrNoChunks means every loaded page was empty.
	ErrNoChunks = errors.New("no text chunks produced")
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type IndexWriter interface {
	Replace(ctx context.Context, records []models.Record, manifest models.Manifest) error
}

// FileError records a PDF that was skipped.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string { return e.Path + ": " + e.Err.Error() }

func (e FileError) Unwrap() error { return e.Err }

func (e FileError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	}{e.Path, e.Err.Error()})
}

// Report summarizes an ingestion run.
type Report struct {
	RunID    string        `json:"run_id"`
	Profile  string        `json:"profile"`
	Files    int           `json:"files"`
	Loaded   int           `json:"loaded"`
	Failed   []FileError   `json:"failed,omitempty"`
	Pages    int           `json:"pages"`
	Chunks   int           `json:"chunks"`
	Duration time.Duration `json:"duration"`
}

type Options struct {
	Profile           string
	Chunking          config.ChunkProfile
	EmbeddingProvider string
	EmbeddingModel    string
	BatchSize         int
}

type Pipeline struct {
	embedder Embedder
	writer   IndexWriter
	opts     Options
	loadPDF  func(path string, maxPages int) ([]models.Page, error)
}

func NewPipeline(embedder Embedder, writer IndexWriter, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Profile == "" {
		opts.Profile = config.ProfileStandard
	}
	return &Pipeline{
		embedder: embedder,
		writer:   writer,
		opts:     opts,
		loadPDF:  parser.LoadPDF,
	}
}

// Run ingests every PDF under root and replaces the index. Unreadable files
// are skipped and listed in the report. When nothing usable is found the
// previous index is left in place.
func (p *Pipeline) Run(ctx context.Context, root string) (*Report, error) {
	start := time.Now()
	runID, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	report := &Report{RunID: runID, Profile: p.opts.Profile}
	logger := log.With().Str("run_id", runID).Str("profile", p.opts.Profile).Logger()

	files, err := parser.FindPDFs(root)
	if err != nil {
		return nil, err
	}
	report.Files = len(files)
	logger.Info().Str("dataset", root).Int("files", len(files)).Msg("Starting ingestion")

	var pages []models.Page
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		filePages, err := p.loadPDF(file, p.opts.Chunking.MaxPagesPerDoc)
		if err != nil {
			logger.Warn().Err(err).Str("file", file).Msg("Skipping unreadable PDF")
			report.Failed = append(report.Failed, FileError{Path: file, Err: err})
			metrics.IngestFilesTotal.WithLabelValues("failed").Inc()
			continue
		}
		report.Loaded++
		report.Pages += len(filePages)
		pages = append(pages, filePages...)
		metrics.IngestFilesTotal.WithLabelValues("loaded").Inc()
		logger.Debug().Str("file", file).Int("pages", len(filePages)).Msg("Loaded PDF")
	}
	if report.Pages == 0 {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("%s: %w", root, ErrNoDocuments)
	}

	chunks := parser.SplitPages(pages, p.opts.Chunking)
	report.Chunks = len(chunks)
	if len(chunks) == 0 {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("%s: %w", root, ErrNoChunks)
	}
	logger.Info().Int("pages", report.Pages).Int("chunks", len(chunks)).Msg("Split documents")

	records, err := p.embed(ctx, chunks)
	if err != nil {
		return report, err
	}

	manifest := models.Manifest{
		RunID:             runID,
		CreatedAt:         time.Now().UTC(),
		EmbeddingProvider: p.opts.EmbeddingProvider,
		EmbeddingModel:    p.opts.EmbeddingModel,
		Dimensions:        len(records[0].Embedding),
		Profile:           p.opts.Profile,
		ChunkSize:         p.opts.Chunking.ChunkSize,
		ChunkOverlap:      p.opts.Chunking.ChunkOverlap,
		Files:             report.Loaded,
		Pages:             report.Pages,
		Chunks:            len(records),
	}
	if err := p.writer.Replace(ctx, records, manifest); err != nil {
		return report, fmt.Errorf("failed to write index: %w", err)
	}
	metrics.IngestChunksTotal.Add(float64(len(records)))

	report.Duration = time.Since(start)
	logger.Info().
		Int("files", report.Files).
		Int("loaded", report.Loaded).
		Int("failed", len(report.Failed)).
		Int("chunks", report.Chunks).
		Dur("duration", report.Duration).
		Msg("Ingestion finished")
	return report, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []models.Chunk) ([]models.Record, error) {
	records := make([]models.Record, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))
		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Content
		}

		vectors, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
		}
		for i, c := range chunks[start:end] {
			records = append(records, models.Record{Chunk: c, Embedding: vectors[i]})
		}
		log.Debug().Int("embedded", end).Int("total", len(chunks)).Msg("Embedding progress")
	}
	return records, nil
}
