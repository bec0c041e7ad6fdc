// Package preview rasterizes one page of a document at a time for
// interactive selection and keeps track of the previewed page.
package preview

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/spherical/redact-edge/internal/coords"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

// DefaultDPI is the preview render resolution.
const DefaultDPI = 120.0

// Frame is one rendered page.
type Frame struct {
	Image     *image.RGBA
	Page      int
	PageCount int
	DPI       float64

	// Display size in points, with the page rotation applied, so it lines
	// up with the pixel buffer.
	WidthPt  float64
	HeightPt float64
	Rotation int

	// Unrotated page size in points.
	PageWidth  float64
	PageHeight float64

	// Adjusted is set when the requested page was out of range and the
	// renderer fell back to the first page.
	Adjusted bool
}

// WidthPx returns the pixel width of the frame.
func (f *Frame) WidthPx() int { return f.Image.Bounds().Dx() }

// HeightPx returns the pixel height of the frame.
func (f *Frame) HeightPx() int { return f.Image.Bounds().Dy() }

// Mapping returns the pixel to point relation of the frame.
func (f *Frame) Mapping() coords.Frame {
	return coords.Frame{
		WidthPx:  float64(f.WidthPx()),
		HeightPx: float64(f.HeightPx()),
		WidthPt:  f.WidthPt,
		HeightPt: f.HeightPt,
	}
}

// Label returns the "Page n/count" caption.
func (f *Frame) Label() string {
	return fmt.Sprintf("Page %d/%d", f.Page+1, f.PageCount)
}

// Invalidator is notified whenever the previewed page changes.
type Invalidator interface {
	Invalidate()
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func()

// Invalidate calls f.
func (f InvalidatorFunc) Invalidate() { f() }

// Renderer renders the current page of the previewed document.
type Renderer struct {
	engine     domain.Engine
	rasterizer domain.Rasterizer
	dpi        float64
	logger     *observability.Logger

	source string // document chosen by the user
	shown  string // document actually rendered, a temp copy once mutated
	page   int
	frame  *Frame

	tempDir      string
	invalidators []Invalidator
}

// NewRenderer creates a renderer. dpi <= 0 selects DefaultDPI.
func NewRenderer(engine domain.Engine, rasterizer domain.Rasterizer, dpi float64, logger *observability.Logger) *Renderer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Renderer{
		engine:     engine,
		rasterizer: rasterizer,
		dpi:        dpi,
		logger:     logger.WithComponent("preview"),
	}
}

// OnInvalidate registers inv to be called on page changes.
func (r *Renderer) OnInvalidate(inv Invalidator) {
	r.invalidators = append(r.invalidators, inv)
}

func (r *Renderer) invalidate() {
	for _, inv := range r.invalidators {
		inv.Invalidate()
	}
}

// Source returns the previewed document path.
func (r *Renderer) Source() string { return r.source }

// Page returns the current zero-based page index.
func (r *Renderer) Page() int { return r.page }

// Frame returns the last rendered frame, or nil.
func (r *Renderer) Frame() *Frame { return r.frame }

// Open switches the preview to path, starting at the first page.
func (r *Renderer) Open(ctx context.Context, path string) (*Frame, error) {
	r.discardTemp()
	r.source = path
	r.shown = path
	r.page = 0
	r.frame = nil
	r.invalidate()
	return r.Render(ctx)
}

// Render renders the current page. A page index outside the document is
// reset to the first page and reported through Frame.Adjusted.
func (r *Renderer) Render(ctx context.Context) (*Frame, error) {
	if r.shown == "" {
		return nil, domain.RenderError("nothing to preview", domain.ErrNoDocument)
	}

	doc, err := r.engine.Open(ctx, r.shown)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	count := doc.PageCount()
	adjusted := false
	if r.page < 0 || r.page >= count {
		r.logger.Warn().Int("page", r.page).Int("count", count).Msg("Preview page out of range, showing first page")
		r.page = 0
		adjusted = true
	}

	info, err := doc.Page(r.page)
	if err != nil {
		return nil, err
	}
	img, err := r.rasterizer.RenderPage(ctx, r.shown, r.page, r.dpi)
	if err != nil {
		return nil, err
	}

	w, h := info.DisplaySize()
	r.frame = &Frame{
		Image:      img,
		Page:       r.page,
		PageCount:  count,
		DPI:        r.dpi,
		WidthPt:    w,
		HeightPt:   h,
		Rotation:   info.Rotation,
		PageWidth:  info.Width,
		PageHeight: info.Height,
		Adjusted:   adjusted,
	}
	r.logger.Debug().Str("page", r.frame.Label()).Int("width_px", r.frame.WidthPx()).Msg("Rendered preview")
	return r.frame, nil
}

// Next moves to the following page. On the last page it does nothing.
func (r *Renderer) Next(ctx context.Context) (*Frame, error) {
	if r.frame != nil && r.page >= r.frame.PageCount-1 {
		return r.frame, nil
	}
	return r.move(ctx, r.page+1)
}

// Prev moves to the preceding page. On the first page it does nothing.
func (r *Renderer) Prev(ctx context.Context) (*Frame, error) {
	if r.page <= 0 {
		if r.frame != nil {
			return r.frame, nil
		}
		return r.Render(ctx)
	}
	return r.move(ctx, r.page-1)
}

// Goto jumps to page n. Pages outside the document are rejected.
func (r *Renderer) Goto(ctx context.Context, n int) (*Frame, error) {
	if r.frame == nil {
		if _, err := r.Render(ctx); err != nil {
			return nil, err
		}
	}
	if n < 0 || n >= r.frame.PageCount {
		return nil, domain.ValidationError(
			fmt.Sprintf("page %d outside 1..%d", n+1, r.frame.PageCount), domain.ErrPageOutOfRange)
	}
	if n == r.page {
		return r.frame, nil
	}
	return r.move(ctx, n)
}

func (r *Renderer) move(ctx context.Context, n int) (*Frame, error) {
	r.page = n
	r.invalidate()
	return r.Render(ctx)
}

// ApplyAreaToPreview paints sel white on a temporary copy of the previewed
// document and shows the copy. The source document is never written.
func (r *Renderer) ApplyAreaToPreview(ctx context.Context, sel domain.Selection) (*Frame, error) {
	if r.shown == "" {
		return nil, domain.RenderError("nothing to preview", domain.ErrNoDocument)
	}
	if r.tempDir == "" {
		dir, err := os.MkdirTemp("", "redact-edge-preview-*")
		if err != nil {
			return nil, domain.IOError("failed to create preview directory", err)
		}
		r.tempDir = dir
	}

	doc, err := r.engine.Open(ctx, r.shown)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	page := sel.Page
	if page < 0 || page >= doc.PageCount() {
		page = 0
	}
	if err := doc.FillRect(page, sel.Rect, color.White); err != nil {
		return nil, err
	}

	out, err := os.CreateTemp(r.tempDir, "preview-*.pdf")
	if err != nil {
		return nil, domain.IOError("failed to create preview copy", err)
	}
	out.Close()
	if err := doc.Save(out.Name(), domain.SaveOptions{}); err != nil {
		os.Remove(out.Name())
		return nil, err
	}

	previous := r.shown
	r.shown = out.Name()
	if previous != r.source {
		os.Remove(previous)
	}
	r.logger.Info().
		Rect("area", sel.Rect.X0, sel.Rect.Y0, sel.Rect.X1, sel.Rect.Y1).
		Int("page", page+1).
		Msg("Applied area to preview copy")
	return r.Render(ctx)
}

// Mutated reports whether the preview shows a temporary copy.
func (r *Renderer) Mutated() bool {
	return r.shown != "" && r.shown != r.source
}

// Close removes any temporary preview copies.
func (r *Renderer) Close() error {
	return r.discardTemp()
}

func (r *Renderer) discardTemp() error {
	r.shown = r.source
	if r.tempDir == "" {
		return nil
	}
	dir := r.tempDir
	r.tempDir = ""
	if err := os.RemoveAll(dir); err != nil {
		return domain.IOError(fmt.Sprintf("failed to remove %s", filepath.Base(dir)), err)
	}
	return nil
}
