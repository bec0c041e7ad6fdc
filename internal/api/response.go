package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spherical/redact-edge/internal/batch"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/journal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps err onto a status code.
func (s *Server) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg(message)
	}
	writeError(w, status, message, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoDocument),
		errors.Is(err, domain.ErrNoFrame),
		errors.Is(err, domain.ErrNoPress):
		return http.StatusConflict
	case errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, batch.ErrQueueFull), errors.Is(err, batch.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case domain.IsType(err, domain.ErrorTypeValidation),
		domain.IsType(err, domain.ErrorTypeSelection),
		domain.IsType(err, domain.ErrorTypeConfig),
		domain.IsType(err, domain.ErrorTypeDocument):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ValidationError("invalid request body", err)
	}
	return nil
}

// RectDTO is a rectangle on the wire.
type RectDTO struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// SelectionDTO is a committed selection. Page is zero-based.
type SelectionDTO struct {
	Page int     `json:"page"`
	Rect RectDTO `json:"rect"`
}

// SelectionsDTO holds both selection slots.
type SelectionsDTO struct {
	Purpose string        `json:"purpose"`
	Textbox *SelectionDTO `json:"textbox,omitempty"`
	Area    *SelectionDTO `json:"area,omitempty"`
}

func selectionDTO(sel *domain.Selection) *SelectionDTO {
	if sel == nil {
		return nil
	}
	r := sel.Rect
	return &SelectionDTO{Page: sel.Page, Rect: RectDTO{X0: r.X0, Y0: r.Y0, X1: r.X1, Y1: r.Y1}}
}
