package domain

import (
	"context"
	"image"
	"image/color"
)

// Engine opens documents for editing.
type Engine interface {
	Open(ctx context.Context, path string) (Document, error)
}

// TextRewriter receives the decoded text of one text-showing operand and
// returns the replacement and whether anything changed.
type TextRewriter func(text string) (string, bool)

// ImageRef identifies one image occurrence on a page. Index is the page-local
// position in invocation order; Name is the resource name. Form is the object
// number of the form XObject that paints the image, 0 for the page itself.
type ImageRef struct {
	Index int
	Name  string
	Form  int
}

// TextStyle controls how DrawText renders.
type TextStyle struct {
	Font    string // standard 14 font name
	Size    float64
	Leading float64 // line height as a multiple of Size
	Color   color.Color
}

// DefaultTextStyle is the fixed style used for injected text boxes.
func DefaultTextStyle() TextStyle {
	return TextStyle{Font: "Helvetica", Size: 12, Leading: 1.2, Color: color.Black}
}

// SaveOptions controls how a document is written.
type SaveOptions struct {
	// Optimize compacts the object graph and compresses streams.
	Optimize bool
}

// Document is an opened, mutable document handle. Mutations only reach disk
// through Save, which always writes to a new path.
type Document interface {
	PageCount() int
	Page(index int) (PageInfo, error)

	// RewriteText applies fn to every text-showing operand on every page and
	// returns how many operands changed.
	RewriteText(fn TextRewriter) (int, error)

	Images(page int) ([]ImageRef, error)
	ReplaceImage(page int, ref ImageRef, img image.Image) error
	DeleteImage(page int, ref ImageRef) error

	// DrawText draws text with its first line's top-left at (x, y).
	DrawText(page int, x, y float64, text string, style TextStyle) error
	FillRect(page int, r DocumentRect, fill color.Color) error

	// StripMarkers makes the next Save keep the source's producer and
	// creation date instead of the engine's own.
	StripMarkers() error

	Save(path string, opts SaveOptions) error
	Close() error
}

// Rasterizer renders document pages to pixels.
type Rasterizer interface {
	RenderPage(ctx context.Context, path string, page int, dpi float64) (*image.RGBA, error)

	// ExportJPEG writes every page as <stem>_page_<n>.jpg into dir and returns
	// the written paths.
	ExportJPEG(ctx context.Context, path, dir, stem string, dpi float64, quality int) ([]string, error)
}

// EventSink receives batch events in order.
type EventSink interface {
	Record(ctx context.Context, event StreamEvent) error
}
