package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/pdf/pdftest"
)

func TestRasterizer_RenderPage(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Lines: []string{"one"}},
		pdftest.Page{Lines: []string{"two"}},
	)
	r := NewRasterizer(nil)

	img, err := r.RenderPage(context.Background(), path, 1, 72)
	require.NoError(t, err)
	assert.Equal(t, 612, img.Bounds().Dx())
	assert.Equal(t, 792, img.Bounds().Dy())

	img, err = r.RenderPage(context.Background(), path, 0, 144)
	require.NoError(t, err)
	assert.Equal(t, 1224, img.Bounds().Dx())

	_, err = r.RenderPage(context.Background(), path, 2, 72)
	assert.ErrorIs(t, err, domain.ErrPageOutOfRange)

	_, err = r.RenderPage(context.Background(), path, 0, 5)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestRasterizer_ExportJPEG(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.Write(t, filepath.Join(dir, "in.pdf"),
		pdftest.Page{Lines: []string{"one"}},
		pdftest.Page{Lines: []string{"two"}},
		pdftest.Page{Lines: []string{"three"}},
	)
	outDir := filepath.Join(dir, "out")

	written, err := NewRasterizer(nil).ExportJPEG(context.Background(), path, outDir, "report_modified", 50, 90)
	require.NoError(t, err)
	require.Len(t, written, 3)
	for i, p := range written {
		assert.Equal(t, filepath.Join(outDir, "report_modified_page_"+string(rune('1'+i))+".jpg"), p)
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRasterizer_ExportRejectsQuality(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"))
	_, err := NewRasterizer(nil).ExportJPEG(context.Background(), path, t.TempDir(), "x", 72, 0)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}
