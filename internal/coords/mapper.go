// Package coords maps rectangles drawn on a rendered page preview into the
// page's document point space.
package coords

import (
	"fmt"
	"math"

	"github.com/spherical/redact-edge/internal/domain"
)

// MinDragPixels is the smallest drag extent, per axis, accepted as a selection.
const MinDragPixels = 5.0

// Frame relates a rendered preview to the page it was rendered from.
type Frame struct {
	WidthPx  float64
	HeightPx float64
	WidthPt  float64
	HeightPt float64
}

// Ratios returns the independent per-axis point-per-pixel scale factors.
func (f Frame) Ratios() (rx, ry float64) {
	return f.WidthPt / f.WidthPx, f.HeightPt / f.HeightPx
}

func (f Frame) validate() error {
	if !(f.WidthPx > 0 && f.HeightPx > 0 && f.WidthPt > 0 && f.HeightPt > 0) {
		return domain.ValidationError(fmt.Sprintf("invalid frame %.2fx%.2f px / %.2fx%.2f pt",
			f.WidthPx, f.HeightPx, f.WidthPt, f.HeightPt), nil)
	}
	return nil
}

// Map converts a dragged pixel rectangle into document points. Drags shorter
// than MinDragPixels on either axis are rejected with ErrSelectionTooSmall.
func Map(px domain.PixelRect, f Frame) (domain.DocumentRect, error) {
	if px.Width() < MinDragPixels || px.Height() < MinDragPixels {
		return domain.DocumentRect{}, domain.SelectionError(
			fmt.Sprintf("drag of %.1fx%.1f px is below %.0f px", px.Width(), px.Height(), MinDragPixels),
			domain.ErrSelectionTooSmall)
	}
	return MapUnchecked(px, f)
}

// MapUnchecked converts like Map but accepts rectangles of any size.
func MapUnchecked(px domain.PixelRect, f Frame) (domain.DocumentRect, error) {
	if err := f.validate(); err != nil {
		return domain.DocumentRect{}, err
	}
	n := px.Normalize()
	rx, ry := f.Ratios()
	return domain.DocumentRect{
		X0: n.X0 * rx,
		Y0: n.Y0 * ry,
		X1: n.X1 * rx,
		Y1: n.Y1 * ry,
	}, nil
}

// Clip normalizes r and clamps it into [0,width]x[0,height].
func Clip(r domain.DocumentRect, width, height float64) domain.DocumentRect {
	n := r.Normalize()
	return domain.DocumentRect{
		X0: clamp(n.X0, 0, width),
		Y0: clamp(n.Y0, 0, height),
		X1: clamp(n.X1, 0, width),
		Y1: clamp(n.Y1, 0, height),
	}
}

// Unrotate maps a rectangle expressed in the displayed (rotated) page frame
// back into the unrotated page frame of size width x height. rotation is the
// page's clockwise display rotation in degrees.
func Unrotate(r domain.DocumentRect, rotation int, width, height float64) domain.DocumentRect {
	x0, y0 := unrotatePoint(r.X0, r.Y0, rotation, width, height)
	x1, y1 := unrotatePoint(r.X1, r.Y1, rotation, width, height)
	return domain.DocumentRect{X0: x0, Y0: y0, X1: x1, Y1: y1}.Normalize()
}

func unrotatePoint(x, y float64, rotation int, width, height float64) (float64, float64) {
	switch NormalizeRotation(rotation) {
	case 90:
		return y, height - x
	case 180:
		return width - x, height - y
	case 270:
		return width - y, x
	default:
		return x, y
	}
}

// NormalizeRotation folds any multiple of 90 into 0, 90, 180 or 270.
// Other values are treated as 0.
func NormalizeRotation(rotation int) int {
	r := ((rotation % 360) + 360) % 360
	if r%90 != 0 {
		return 0
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
