package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"lawgpt/internal/config"
	"lawgpt/internal/lifecycle"
	"lawgpt/internal/metrics"
	"lawgpt/internal/rag"
)

const (
	msgEmpty       = "Please provide a message."
	msgInvalidBody = "Invalid request body."
	msgLoading     = "The AI model is still loading. Please wait a moment and try again."
	msgLoadFailed  = "The AI model failed to load. Please try restarting the server."
)

// Querier answers a question; *rag.RAG is the production implementation.
type Querier interface {
	Query(ctx context.Context, question string) (*rag.Answer, error)
}

type Server struct {
	loader   *lifecycle.Loader[Querier]
	cfg      config.HTTPConfig
	markdown goldmark.Markdown
}

func New(loader *lifecycle.Loader[Querier], cfg config.HTTPConfig) *Server {
	return &Server{
		loader:   loader,
		cfg:      cfg,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(metrics.Middleware())

	r.Post("/chat", s.handleChat)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	if dir := s.cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			log.Warn().Str("dir", dir).Msg("Static directory not found, frontend disabled")
		}
	}
	return r
}

type chatRequest struct {
	Message string `json:"message"`
}

type source struct {
	File  string  `json:"file"`
	Page  int     `json:"page"`
	Score float32 `json:"score"`
}

type chatResponse struct {
	Error    bool     `json:"error"`
	Response string   `json:"response"`
	Loading  *bool    `json:"loading,omitempty"`
	HTML     string   `json:"html,omitempty"`
	Sources  []source `json:"sources,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("empty").Inc()
		s.writeJSON(w, http.StatusBadRequest, chatResponse{Error: true, Response: msgInvalidBody})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		metrics.ChatRequestsTotal.WithLabelValues("empty").Inc()
		s.writeJSON(w, http.StatusBadRequest, chatResponse{Error: true, Response: msgEmpty})
		return
	}

	snap := s.loader.Snapshot()
	switch snap.State {
	case lifecycle.Uninitialized, lifecycle.Loading:
		metrics.ChatRequestsTotal.WithLabelValues("loading").Inc()
		s.writeJSON(w, http.StatusServiceUnavailable, chatResponse{Response: msgLoading, Loading: ptr(true)})
		return
	case lifecycle.Failed:
		metrics.ChatRequestsTotal.WithLabelValues("unavailable").Inc()
		s.writeJSON(w, http.StatusServiceUnavailable, chatResponse{
			Error:    true,
			Response: msgLoadFailed + " Error: " + snap.Err.Error(),
		})
		return
	}

	answer, err := snap.Value.Query(r.Context(), message)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Str("stack", string(debug.Stack())).Msg("Error processing query")
		status := http.StatusBadGateway
		if errors.Is(err, rag.ErrEmptyQuestion) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, chatResponse{Error: true, Response: rag.Apology(err)})
		return
	}

	resp := chatResponse{Response: answer.Text, Loading: ptr(false)}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(answer.Text), &buf); err != nil {
		logger.Warn().Err(err).Msg("Failed to render answer markdown")
	} else {
		resp.HTML = buf.String()
	}
	for _, h := range answer.Sources {
		resp.Sources = append(resp.Sources, source{File: h.Source, Page: h.PageNumber, Score: h.Score})
	}
	metrics.ChatRequestsTotal.WithLabelValues("answered").Inc()
	logger.Info().Int("sources", len(resp.Sources)).Int("answer_chars", len(answer.Text)).Msg("Answered question")
	s.writeJSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	ModelLoaded bool   `json:"model_loaded"`
	IsLoading   bool   `json:"is_loading"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.loader.Snapshot()
	resp := statusResponse{
		ModelLoaded: snap.State == lifecycle.Ready,
		IsLoading:   snap.State == lifecycle.Loading || snap.State == lifecycle.Uninitialized,
		Status:      snap.State.String(),
	}
	if snap.State == lifecycle.Uninitialized {
		resp.Status = lifecycle.Loading.String()
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.cfg.ServiceName,
	})
}

// writeJSON downgrades status to 200 unless strict status codes are enabled.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if !s.cfg.StrictStatus {
		status = http.StatusOK
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ptr[T any](v T) *T { return &v }

// requestLogger puts a request-scoped logger in the context and emits one
// log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		logger := log.With().Str("request_id", requestID).Logger()
		ctx := logger.WithContext(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Int("response_bytes", ww.BytesWritten()).
			Msg("http_request")
	})
}
