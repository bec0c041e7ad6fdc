// Package api exposes the interactive preview, selection capture and the
// batch queue over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/redact-edge/internal/batch"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/journal"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/preview"
	"github.com/spherical/redact-edge/internal/selection"
)

// Submitter accepts batches for background processing.
type Submitter interface {
	Submit(cfg domain.JobConfig, progress batch.ProgressFunc) (string, error)
	Status(id string) (batch.TaskStatus, bool)
}

// History reads recorded runs.
type History interface {
	Runs(ctx context.Context, limit int) ([]journal.Run, error)
	Run(ctx context.Context, id string) (*journal.Run, error)
	Events(ctx context.Context, runID string) ([]journal.Event, error)
}

// Config holds router settings.
type Config struct {
	RequestTimeout time.Duration
}

// DefaultConfig returns default router settings.
func DefaultConfig() Config {
	return Config{RequestTimeout: 60 * time.Second}
}

// Server owns the single interactive session: one previewed document and
// its selector. Requests touching them are serialized.
type Server struct {
	logger *observability.Logger

	mu       sync.Mutex
	renderer *preview.Renderer
	selector *selection.Selector

	queue   Submitter
	history History
}

// NewServer wires renderer and selector together. history may be nil when
// the journal is disabled.
func NewServer(renderer *preview.Renderer, queue Submitter, history History, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.Nop()
	}
	selector := selection.NewSelector(logger)
	renderer.OnInvalidate(selector)
	return &Server{
		logger:   logger.WithComponent("api"),
		renderer: renderer,
		selector: selector,
		queue:    queue,
		history:  history,
	}
}

// Close releases preview temp files.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderer.Close()
}

// NewRouter creates the API router with all routes configured.
func NewRouter(s *Server, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"redact-edge"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/preview", func(r chi.Router) {
			r.Get("/", s.GetFrame)
			r.Post("/open", s.OpenPreview)
			r.Get("/image", s.FrameImage)
			r.Post("/next", s.NextPage)
			r.Post("/prev", s.PrevPage)
			r.Post("/goto", s.GotoPage)
			r.Post("/apply-area", s.ApplyArea)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Get("/", s.GetSelections)
			r.Put("/purpose", s.SetPurpose)
			r.Post("/press", s.Press)
			r.Post("/motion", s.Motion)
			r.Post("/release", s.Release)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.SubmitJob)
			r.Get("/{jobId}", s.JobStatus)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.ListRuns)
			r.Get("/{runId}", s.GetRun)
		})
	})

	return r
}

func requestLogger(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", chimiddleware.GetReqID(r.Context())).
				Msg("Request handled")
		})
	}
}
