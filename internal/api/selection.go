package api

import (
	"net/http"
	"strconv"

	"github.com/spherical/redact-edge/internal/selection"
)

// PointDTO is a pointer position in preview pixels. Scale is the
// X-Frame-Scale of the image the position was taken on; zero means the
// full-size frame.
type PointDTO struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Scale float64 `json:"scale,omitempty"`
}

func (p PointDTO) scale() float64 {
	if p.Scale == 0 {
		return 1
	}
	return p.Scale
}

// frame returns the position in full-size frame pixels.
func (p PointDTO) frame() (float64, float64) {
	return p.X / p.scale(), p.Y / p.scale()
}

func (s *Server) decodePoint(w http.ResponseWriter, r *http.Request) (PointDTO, bool) {
	var p PointDTO
	if err := decode(r, &p); err != nil {
		s.writeDomainError(w, "invalid request body", err)
		return p, false
	}
	if p.Scale < 0 {
		writeError(w, http.StatusBadRequest, "invalid scale", strconv.FormatFloat(p.Scale, 'f', -1, 64))
		return p, false
	}
	return p, true
}

// PurposeDTO names the slot that releases write to.
type PurposeDTO struct {
	Purpose string `json:"purpose"`
}

// MotionDTO is the rubber band for the current pointer position.
type MotionDTO struct {
	Active bool     `json:"active"`
	Rect   *RectDTO `json:"rect,omitempty"`
}

// GetSelections handles GET /selection.
func (s *Server) GetSelections(w http.ResponseWriter, r *http.Request) {
	sel := s.selector.Selections()
	writeJSON(w, http.StatusOK, SelectionsDTO{
		Purpose: s.selector.Purpose().String(),
		Textbox: selectionDTO(sel.Textbox),
		Area:    selectionDTO(sel.Area),
	})
}

// SetPurpose handles PUT /selection/purpose.
func (s *Server) SetPurpose(w http.ResponseWriter, r *http.Request) {
	var req PurposeDTO
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, "invalid request body", err)
		return
	}
	p, err := selection.ParsePurpose(req.Purpose)
	if err != nil {
		s.writeDomainError(w, "invalid purpose", err)
		return
	}
	s.selector.SetPurpose(p)
	writeJSON(w, http.StatusOK, PurposeDTO{Purpose: p.String()})
}

// Press handles POST /selection/press.
func (s *Server) Press(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodePoint(w, r)
	if !ok {
		return
	}
	s.selector.Press(p.frame())
	w.WriteHeader(http.StatusNoContent)
}

// Motion handles POST /selection/motion. The rubber band comes back in the
// pixels of the point's scale.
func (s *Server) Motion(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodePoint(w, r)
	if !ok {
		return
	}
	rect, ok := s.selector.Motion(p.frame())
	if !ok {
		writeJSON(w, http.StatusOK, MotionDTO{})
		return
	}
	n, k := rect.Normalize(), p.scale()
	writeJSON(w, http.StatusOK, MotionDTO{Active: true, Rect: &RectDTO{X0: n.X0 * k, Y0: n.Y0 * k, X1: n.X1 * k, Y1: n.Y1 * k}})
}

// Release handles POST /selection/release.
func (s *Server) Release(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodePoint(w, r)
	if !ok {
		return
	}
	x, y := p.frame()

	s.mu.Lock()
	sel, err := s.selector.Release(x, y)
	s.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, "selection rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, selectionDTO(&sel))
}
