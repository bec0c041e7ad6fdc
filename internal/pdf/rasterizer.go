package pdf

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

// Rasterizer renders pages with MuPDF through go-fitz.
type Rasterizer struct {
	validator *Validator
	logger    *observability.Logger
}

// NewRasterizer creates a go-fitz rasterizer.
func NewRasterizer(logger *observability.Logger) *Rasterizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Rasterizer{
		validator: NewValidator(logger),
		logger:    logger.WithComponent("rasterizer"),
	}
}

func (r *Rasterizer) open(path string, dpi float64) (*fitz.Document, error) {
	if err := r.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}
	if err := r.validator.ValidateDPI(dpi); err != nil {
		return nil, err
	}
	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("failed to open %s", path), err)
	}
	if doc.NumPage() == 0 {
		doc.Close()
		return nil, domain.RenderError(fmt.Sprintf("%s has no pages", path), nil)
	}
	return doc, nil
}

// RenderPage rasterizes one zero-based page at dpi.
func (r *Rasterizer) RenderPage(ctx context.Context, path string, page int, dpi float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := r.open(path, dpi)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, domain.ValidationError(
			fmt.Sprintf("page %d outside 0..%d", page, doc.NumPage()-1), domain.ErrPageOutOfRange)
	}

	img, err := doc.ImageDPI(page, dpi)
	if err != nil {
		return nil, domain.RenderError(fmt.Sprintf("failed to render page %d", page+1), err)
	}
	return img, nil
}

// ExportJPEG writes every page of path as <stem>_page_<n>.jpg into dir, n
// counting from 1. On failure the pages written so far are returned with
// the error.
func (r *Rasterizer) ExportJPEG(ctx context.Context, path, dir, stem string, dpi float64, quality int) ([]string, error) {
	if err := r.validator.ValidateQuality(quality); err != nil {
		return nil, err
	}
	doc, err := r.open(path, dpi)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to create %s", dir), err)
	}

	pageCount := doc.NumPage()
	written := make([]string, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return written, domain.ExportError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		outputPath := filepath.Join(dir, fmt.Sprintf("%s_page_%d.jpg", stem, pageNum+1))
		outputFile, err := os.Create(outputPath)
		if err != nil {
			return written, domain.IOError(fmt.Sprintf("failed to create output file for page %d", pageNum+1), err)
		}

		err = jpeg.Encode(outputFile, img, &jpeg.Options{Quality: quality})
		outputFile.Close()
		if err != nil {
			os.Remove(outputPath)
			return written, domain.ExportError(fmt.Sprintf("failed to encode page %d as JPEG", pageNum+1), err)
		}
		written = append(written, outputPath)
	}

	r.logger.Info().Str("path", path).Int("pages", len(written)).Msgf("Saved %d JPEG(s)", len(written))
	return written, nil
}
