package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"lawgpt/internal/config"
	"lawgpt/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// newEmbeddingServer answers each input text with {len(text), index}, listing
// the results in reverse order.
func newEmbeddingServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		*calls++

		data := make([]embeddingData, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, embeddingData{
				Object:    "embedding",
				Embedding: []float32{float32(len(req.Input[i])), float32(i)},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
}

func TestOpenAIEmbedder_EmbedDocumentsBatchesInOrder(t *testing.T) {
	var calls int
	server := newEmbeddingServer(t, &calls)
	defer server.Close()

	emb := NewOpenAIEmbedder(config.EmbeddingConfig{
		Provider:  "openai",
		Model:     "text-embedding-3-small",
		BaseURL:   server.URL,
		APIKey:    "test-key",
		BatchSize: 2,
	})

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := emb.EmbedDocuments(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedDocuments failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 batched calls, got %d", calls)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	for i, v := range vectors {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d belongs to the wrong text: %v", i, v)
		}
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	emb := NewOpenAIEmbedder(config.EmbeddingConfig{Model: "m", BaseURL: server.URL, APIKey: "test-key"})
	_, err := emb.EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrProvider) {
		t.Errorf("expected ErrProvider, got %v", err)
	}
}

type fakeEmbedder struct {
	mu      sync.Mutex
	docs    [][]string
	queries []string
	err     error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 2}, nil
}

func TestInstrumented_CountsRequests(t *testing.T) {
	emb := &instrumented{inner: &fakeEmbedder{}, provider: "fake", model: "counting"}

	before := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("fake", "counting", "success"))
	if _, err := emb.EmbedQuery(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}
	if _, err := emb.EmbedDocuments(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	after := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("fake", "counting", "success"))
	if after != before+2 {
		t.Errorf("expected 2 successful requests, got %f", after-before)
	}

	failing := &instrumented{inner: &fakeEmbedder{err: errors.New("down")}, provider: "fake", model: "counting"}
	if _, err := failing.EmbedQuery(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if v := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("fake", "counting", "error")); v < 1 {
		t.Errorf("expected an error request, got %f", v)
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(config.EmbeddingConfig{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
