package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/journal"
)

const maxJobBody = 1 << 20

// JobDTO is the accepted-job response.
type JobDTO struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// RunDTO is a recorded run with its events.
type RunDTO struct {
	Run    *journal.Run    `json:"run"`
	Events []journal.Event `json:"events"`
}

// SubmitJob handles POST /jobs. The body is a job document in YAML or JSON.
// With ?selections=true the captured selections fill the textbox and area
// entries.
func (s *Server) SubmitJob(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxJobBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}
	job, err := config.ParseJob(data)
	if err != nil {
		s.writeDomainError(w, "invalid job", err)
		return
	}
	if use, _ := strconv.ParseBool(r.URL.Query().Get("selections")); use {
		job.WithSelections(s.selector.Selections())
	}

	cfg, err := job.Build(s.logger)
	if err != nil {
		s.writeDomainError(w, "job is not ready", err)
		return
	}

	id, err := s.queue.Submit(cfg, nil)
	if err != nil {
		s.writeDomainError(w, "failed to queue job", err)
		return
	}
	s.logger.Info().
		Str("job_id", id).
		Int("documents", len(cfg.Inputs)).
		Strs("operations", kindNames(cfg.EnabledKinds())).
		Msg("Job accepted")

	writeJSON(w, http.StatusAccepted, JobDTO{ID: id, State: "queued"})
}

// JobStatus handles GET /jobs/{jobId}.
func (s *Server) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobId")
	st, ok := s.queue.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found", id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = n
	}
	runs, err := s.history.Runs(r.Context(), limit)
	if err != nil {
		s.writeDomainError(w, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{runId}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	id := chi.URLParam(r, "runId")
	run, err := s.history.Run(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "failed to load run", err)
		return
	}
	events, err := s.history.Events(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, "failed to load events", err)
		return
	}
	writeJSON(w, http.StatusOK, RunDTO{Run: run, Events: events})
}

func kindNames(kinds []domain.OperationKind) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}
