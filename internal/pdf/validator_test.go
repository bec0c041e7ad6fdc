package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/redact-edge/internal/domain"
)

func TestValidator_ValidatePDFPath(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "ok.PDF")
	txtPath := filepath.Join(dir, "notes.txt")
	for _, p := range []string{pdfPath, txtPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"valid", pdfPath, false},
		{"empty", "  ", true},
		{"missing", filepath.Join(dir, "missing.pdf"), true},
		{"directory", dir, true},
		{"wrong extension", txtPath, true},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePDFPath(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		})
	}
}

func TestValidator_ValidateImagePath(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "logo.png")
	svg := filepath.Join(dir, "logo.svg")
	for _, p := range []string{png, svg} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	v := NewValidator(nil)
	assert.NoError(t, v.ValidateImagePath(png))
	assert.ErrorIs(t, v.ValidateImagePath(svg), domain.ErrUnsupportedImage)
}

func TestValidator_Ranges(t *testing.T) {
	v := NewValidator(nil)
	assert.NoError(t, v.ValidateQuality(90))
	assert.Error(t, v.ValidateQuality(101))
	assert.NoError(t, v.ValidateDPI(200))
	assert.Error(t, v.ValidateDPI(0))
}
