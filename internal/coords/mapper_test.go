package coords

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
)

// US Letter rendered at 120 DPI.
var letter120 = Frame{WidthPx: 1020, HeightPx: 1320, WidthPt: 612, HeightPt: 792}

func TestMap_ScalesEachAxis(t *testing.T) {
	got, err := Map(domain.PixelRect{X0: 120, Y0: 120, X1: 333.33, Y1: 166.67}, letter120)
	require.NoError(t, err)

	assert.InDelta(t, 72, got.X0, 1e-9)
	assert.InDelta(t, 72, got.Y0, 1e-9)
	assert.InDelta(t, 199.998, got.X1, 1e-9)
	assert.InDelta(t, 100.002, got.Y1, 1e-9)
}

func TestMap_NormalizesCorners(t *testing.T) {
	got, err := Map(domain.PixelRect{X0: 300, Y0: 400, X1: 100, Y1: 200}, letter120)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentRect{X0: 60, Y0: 120, X1: 180, Y1: 240}, got)
}

func TestMap_NonUniformScale(t *testing.T) {
	f := Frame{WidthPx: 100, HeightPx: 400, WidthPt: 200, HeightPt: 200}
	got, err := Map(domain.PixelRect{X0: 10, Y0: 10, X1: 50, Y1: 110}, f)
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentRect{X0: 20, Y0: 5, X1: 100, Y1: 55}, got)
}

func TestMap_RejectsSmallDrags(t *testing.T) {
	tests := []struct {
		name string
		rect domain.PixelRect
	}{
		{"zero area", domain.PixelRect{X0: 10, Y0: 10, X1: 10, Y1: 10}},
		{"narrow", domain.PixelRect{X0: 10, Y0: 10, X1: 14.9, Y1: 100}},
		{"short", domain.PixelRect{X0: 10, Y0: 10, X1: 100, Y1: 14.99}},
		{"reversed narrow", domain.PixelRect{X0: 14, Y0: 100, X1: 10, Y1: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Map(tt.rect, letter120)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrSelectionTooSmall))
			assert.True(t, domain.IsType(err, domain.ErrorTypeSelection))
		})
	}
}

func TestMap_AcceptsExactlyMinimum(t *testing.T) {
	_, err := Map(domain.PixelRect{X0: 0, Y0: 0, X1: 5, Y1: 5}, letter120)
	assert.NoError(t, err)
}

func TestMapUnchecked_AcceptsTinyRects(t *testing.T) {
	got, err := MapUnchecked(domain.PixelRect{X0: 10, Y0: 10, X1: 11, Y1: 10}, letter120)
	require.NoError(t, err)
	assert.InDelta(t, 6.0, got.X0, 1e-9)
	assert.InDelta(t, 6.6, got.X1, 1e-9)
	assert.Equal(t, got.Y0, got.Y1)
}

func TestMapUnchecked_InvalidFrame(t *testing.T) {
	_, err := MapUnchecked(domain.PixelRect{X1: 10, Y1: 10}, Frame{WidthPx: 0, HeightPx: 10, WidthPt: 1, HeightPt: 1})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestMap_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		f := Frame{
			WidthPx:  50 + rng.Float64()*3000,
			HeightPx: 50 + rng.Float64()*3000,
			WidthPt:  50 + rng.Float64()*2000,
			HeightPt: 50 + rng.Float64()*2000,
		}
		px := domain.PixelRect{
			X0: rng.Float64() * f.WidthPx,
			Y0: rng.Float64() * f.HeightPx,
			X1: rng.Float64() * f.WidthPx,
			Y1: rng.Float64() * f.HeightPx,
		}
		got, err := Map(px, f)
		if px.Width() < MinDragPixels || px.Height() < MinDragPixels {
			require.ErrorIs(t, err, domain.ErrSelectionTooSmall)
			continue
		}
		require.NoError(t, err)

		rx, ry := f.Ratios()
		n := px.Normalize()
		assert.InDelta(t, n.X0*rx, got.X0, 1e-9)
		assert.InDelta(t, n.Y0*ry, got.Y0, 1e-9)
		assert.InDelta(t, n.X1*rx, got.X1, 1e-9)
		assert.InDelta(t, n.Y1*ry, got.Y1, 1e-9)
		assert.LessOrEqual(t, got.X0, got.X1)
		assert.LessOrEqual(t, got.Y0, got.Y1)
	}
}

func TestClip(t *testing.T) {
	got := Clip(domain.DocumentRect{X0: 700, Y0: -10, X1: -5, Y1: 50}, 612, 792)
	assert.Equal(t, domain.DocumentRect{X0: 0, Y0: 0, X1: 612, Y1: 50}, got)
}

func TestUnrotate(t *testing.T) {
	// Unrotated page is 600 wide and 800 tall.
	r := domain.DocumentRect{X0: 10, Y0: 20, X1: 110, Y1: 70}

	tests := []struct {
		rotation int
		want     domain.DocumentRect
	}{
		{0, r},
		{360, r},
		{90, domain.DocumentRect{X0: 20, Y0: 690, X1: 70, Y1: 790}},
		{180, domain.DocumentRect{X0: 490, Y0: 730, X1: 590, Y1: 780}},
		{270, domain.DocumentRect{X0: 530, Y0: 10, X1: 580, Y1: 110}},
		{-90, domain.DocumentRect{X0: 530, Y0: 10, X1: 580, Y1: 110}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Unrotate(r, tt.rotation, 600, 800), "rotation %d", tt.rotation)
	}
}

func TestNormalizeRotation(t *testing.T) {
	assert.Equal(t, 0, NormalizeRotation(0))
	assert.Equal(t, 90, NormalizeRotation(450))
	assert.Equal(t, 270, NormalizeRotation(-90))
	assert.Equal(t, 0, NormalizeRotation(45))
}
