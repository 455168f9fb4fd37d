package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"lawgpt/internal/metrics"
	"lawgpt/internal/models"
)

// Query pipeline stages, in order.
const (
	StageEmbed    = "embed"
	StageSearch   = "search"
	StagePrompt   = "prompt"
	StageGenerate = "generate"
)

// ErrEmptyQuestion is returned for blank questions before any stage runs.
var ErrEmptyQuestion = errors.New("question is empty")

type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]models.Hit, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Apology turns an error into the text shown to the user in place of an answer.
func Apology(err error) string {
	return "I apologize, but I encountered an error: " + err.Error()
}

// Answer is the generated text with the passages it was grounded on.
type Answer struct {
	Text    string
	Sources []models.Hit
}

type RAG struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	topK      int
	prompt    prompts.PromptTemplate
}

func NewRAG(embedder Embedder, searcher Searcher, generator Generator, topK int) *RAG {
	return &RAG{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		topK:      topK,
		prompt:    prompts.NewPromptTemplate(models.AnswerPromptTemplate, []string{"context", "question"}),
	}
}

// Query answers question from the top-k indexed passages.
func (r *RAG) Query(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	var (
		embedding []float32
		hits      []models.Hit
		prompt    string
		text      string
	)
	err := runStage(StageEmbed, func() (err error) {
		embedding, err = r.embedder.EmbedQuery(ctx, question)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StageSearch, func() (err error) {
		hits, err = r.searcher.Search(ctx, embedding, r.topK)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StagePrompt, func() (err error) {
		prompt, err = r.prompt.Format(map[string]any{
			"context":  BuildContext(hits),
			"question": question,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = runStage(StageGenerate, func() (err error) {
		text, err = r.generator.Generate(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, h := range hits {
		log.Debug().Str("source", h.Source).Int("page", h.PageNumber).Float32("score", h.Score).Msg("Retrieved passage")
	}
	return &Answer{Text: text, Sources: hits}, nil
}

// BuildContext joins the passages in rank order, separated by a blank line.
func BuildContext(hits []models.Hit) string {
	parts := make([]string, len(hits))
	for i, h := range hits {
		parts[i] = h.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

func runStage(stage string, fn func() error) (err error) {
	defer metrics.ObserveStage(stage, time.Now())
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := fn(); err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}
