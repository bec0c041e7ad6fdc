package api

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/preview"
)

// FrameDTO describes the rendered page.
type FrameDTO struct {
	Source    string  `json:"source"`
	Page      int     `json:"page"`
	PageCount int     `json:"pageCount"`
	Label     string  `json:"label"`
	DPI       float64 `json:"dpi"`
	WidthPx   int     `json:"widthPx"`
	HeightPx  int     `json:"heightPx"`
	WidthPt   float64 `json:"widthPt"`
	HeightPt  float64 `json:"heightPt"`
	Rotation  int     `json:"rotation"`
	Adjusted  bool    `json:"adjusted,omitempty"`
	Mutated   bool    `json:"mutated,omitempty"`
}

// OpenRequestDTO selects the document to preview.
type OpenRequestDTO struct {
	Path string `json:"path"`
}

// GotoRequestDTO jumps to a zero-based page.
type GotoRequestDTO struct {
	Page int `json:"page"`
}

func (s *Server) frameDTO(f *preview.Frame) FrameDTO {
	return FrameDTO{
		Source:    s.renderer.Source(),
		Page:      f.Page,
		PageCount: f.PageCount,
		Label:     f.Label(),
		DPI:       f.DPI,
		WidthPx:   f.WidthPx(),
		HeightPx:  f.HeightPx(),
		WidthPt:   f.WidthPt,
		HeightPt:  f.HeightPt,
		Rotation:  f.Rotation,
		Adjusted:  f.Adjusted,
		Mutated:   s.renderer.Mutated(),
	}
}

// render runs fn under the session lock, attaches the resulting frame to
// the selector and writes it.
func (s *Server) render(w http.ResponseWriter, r *http.Request, message string, fn func(ctx context.Context) (*preview.Frame, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := fn(r.Context())
	if err != nil {
		s.writeDomainError(w, message, err)
		return
	}
	s.selector.SetFrame(frame)
	writeJSON(w, http.StatusOK, s.frameDTO(frame))
}

// OpenPreview handles POST /preview/open.
func (s *Server) OpenPreview(w http.ResponseWriter, r *http.Request) {
	var req OpenRequestDTO
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, "invalid request body", err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required", "")
		return
	}
	s.logger.Info().Str("path", req.Path).Msg("Opening preview")
	s.render(w, r, "failed to open preview", func(ctx context.Context) (*preview.Frame, error) {
		return s.renderer.Open(ctx, req.Path)
	})
}

// GetFrame handles GET /preview.
func (s *Server) GetFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.renderer.Frame()
	if frame == nil {
		writeError(w, http.StatusConflict, "no document open", "")
		return
	}
	writeJSON(w, http.StatusOK, s.frameDTO(frame))
}

// NextPage handles POST /preview/next.
func (s *Server) NextPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "failed to change page", s.renderer.Next)
}

// PrevPage handles POST /preview/prev.
func (s *Server) PrevPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "failed to change page", s.renderer.Prev)
}

// GotoPage handles POST /preview/goto.
func (s *Server) GotoPage(w http.ResponseWriter, r *http.Request) {
	var req GotoRequestDTO
	if err := decode(r, &req); err != nil {
		s.writeDomainError(w, "invalid request body", err)
		return
	}
	s.render(w, r, "failed to change page", func(ctx context.Context) (*preview.Frame, error) {
		return s.renderer.Goto(ctx, req.Page)
	})
}

// ApplyArea handles POST /preview/apply-area: the pending area selection is
// painted onto a preview copy.
func (s *Server) ApplyArea(w http.ResponseWriter, r *http.Request) {
	area := s.selector.Selections().Area
	if area == nil {
		writeError(w, http.StatusConflict, "no area selected", "")
		return
	}
	s.render(w, r, "failed to apply area", func(ctx context.Context) (*preview.Frame, error) {
		return s.renderer.ApplyAreaToPreview(ctx, *area)
	})
}

// FrameImage handles GET /preview/image. The optional max query parameter
// bounds the longer side of the returned PNG; X-Frame-Scale reports the
// ratio of the returned width to the frame's, for selection points.
func (s *Server) FrameImage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	frame := s.renderer.Frame()
	s.mu.Unlock()
	if frame == nil {
		s.writeDomainError(w, "no frame rendered", domain.RenderError("nothing to preview", domain.ErrNoDocument))
		return
	}

	var img image.Image = frame.Image
	if v := r.URL.Query().Get("max"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid max", v)
			return
		}
		img = thumbnail(frame.Image, limit)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Page-Label", frame.Label())
	scale := float64(img.Bounds().Dx()) / float64(frame.Image.Bounds().Dx())
	w.Header().Set("X-Frame-Scale", strconv.FormatFloat(scale, 'f', -1, 64))
	if err := png.Encode(w, img); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode preview image")
	}
}

// thumbnail scales src so that its longer side is at most limit pixels.
func thumbnail(src *image.RGBA, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}
	if w >= h {
		h = h * limit / w
		w = limit
	} else {
		w = w * limit / h
		h = limit
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
