// Package server exposes the recording pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/pipeline"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

// Lifecycle is the part of pipeline.Runner the API drives.
type Lifecycle interface {
	Submit(ctx context.Context, in pipeline.NewRecording) (*types.Recording, error)
	Start(rec *types.Recording, localCopy string) *pipeline.Job
	Retry(ctx context.Context, id string) (*types.Recording, error)
	Status(ctx context.Context, id string) (pipeline.StatusReport, error)
}

// Deps wires a Server.
type Deps struct {
	Lifecycle Lifecycle
	Records   store.RecordStore
	Knowledge store.KnowledgeStore
	// Blobs, when set, is served under /recordings/.
	Blobs          http.Handler
	Uploads        scratch.Dir
	MaxUploadBytes int64
	AllowedOrigins []string
}

// Server is the HTTP API.
type Server struct {
	d      Deps
	router chi.Router
}

const defaultMaxUpload = 50 << 20

func New(d Deps) *Server {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	s := &Server{d: d, router: chi.NewRouter()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	r.Route("/api/recordings", func(r chi.Router) {
		r.Get("/", s.handleListRecordings)
		r.Post("/", s.handleUpload)
		r.Get("/{id}/status", s.handleStatus)
		r.Post("/{id}/retry-analysis", s.handleRetry)
	})
	r.Get("/api/projects/{project}/objection-counts", s.handleObjectionCounts)
	r.Get("/api/pros-cons", s.handleGetProsCons)
	r.Post("/api/pros-cons", s.handleSaveProsCons)

	if s.d.Blobs != nil {
		r.Mount("/recordings", http.StripPrefix("/recordings", s.d.Blobs))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.New().WithRequest(r).
			WithField("status", ww.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request handled")
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.New().WithRequest(r).WithError(err).Error("failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
