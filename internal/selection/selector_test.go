package selection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/preview"
)

// letterFrame is US Letter rendered at 120 dpi.
func letterFrame(page int) *preview.Frame {
	return &preview.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 1020, 1320)),
		Page:       page,
		PageCount:  3,
		DPI:        120,
		WidthPt:    612,
		HeightPt:   792,
		PageWidth:  612,
		PageHeight: 792,
	}
}

func TestSelector_TextboxDrag(t *testing.T) {
	s := NewSelector(nil)
	s.SetFrame(letterFrame(1))
	assert.Equal(t, PurposeTextbox, s.Purpose())

	s.Press(300, 200)
	band, ok := s.Motion(100, 100)
	require.True(t, ok)
	assert.Equal(t, domain.PixelRect{X0: 300, Y0: 200, X1: 100, Y1: 100}, band)
	assert.Nil(t, s.Selections().Textbox, "motion does not commit")

	sel, err := s.Release(100, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Page)
	assert.InDelta(t, 60, sel.Rect.X0, 1e-9)
	assert.InDelta(t, 60, sel.Rect.Y0, 1e-9)
	assert.InDelta(t, 180, sel.Rect.X1, 1e-9)
	assert.InDelta(t, 120, sel.Rect.Y1, 1e-9)

	got := s.Selections()
	require.NotNil(t, got.Textbox)
	assert.Equal(t, sel, *got.Textbox)
	assert.Nil(t, got.Area)
}

func TestSelector_SmallDrag(t *testing.T) {
	s := NewSelector(nil)
	s.SetFrame(letterFrame(0))

	s.Press(10, 10)
	_, err := s.Release(100, 100)
	require.NoError(t, err)

	// a tiny textbox drag clears the previous textbox
	s.Press(10, 10)
	_, err = s.Release(12, 40)
	assert.ErrorIs(t, err, domain.ErrSelectionTooSmall)
	assert.Nil(t, s.Selections().Textbox)

	// area drags of any size are kept
	s.SetPurpose(PurposeArea)
	s.Press(10, 10)
	sel, err := s.Release(12, 11)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, sel.Rect.Width(), 1e-9)
	require.NotNil(t, s.Selections().Area)
}

func TestSelector_ReleaseErrors(t *testing.T) {
	s := NewSelector(nil)
	_, err := s.Release(1, 1)
	assert.ErrorIs(t, err, domain.ErrNoPress)
	assert.True(t, domain.IsType(err, domain.ErrorTypeSelection))

	s.Press(0, 0)
	_, err = s.Release(100, 100)
	assert.ErrorIs(t, err, domain.ErrNoFrame)
	assert.Equal(t, domain.Selections{}, s.Selections())

	_, ok := s.Motion(5, 5)
	assert.False(t, ok, "release ends the drag")
}

func TestSelector_InvalidateAndPageChange(t *testing.T) {
	s := NewSelector(nil)
	s.SetFrame(letterFrame(0))

	s.Press(0, 0)
	_, err := s.Release(50, 50)
	require.NoError(t, err)
	s.SetPurpose(PurposeArea)
	s.Press(0, 0)
	_, err = s.Release(50, 50)
	require.NoError(t, err)

	// same page keeps the slots
	s.SetFrame(letterFrame(0))
	assert.NotNil(t, s.Selections().Area)

	s.SetFrame(letterFrame(2))
	assert.Equal(t, domain.Selections{}, s.Selections())

	s.Press(0, 0)
	_, err = s.Release(50, 50)
	require.NoError(t, err)
	s.Invalidate()
	assert.Equal(t, domain.Selections{}, s.Selections())
}

func TestSelector_RotatedPage(t *testing.T) {
	// 612x792 page shown rotated by 90 degrees at 72 dpi
	f := &preview.Frame{
		Image:      image.NewRGBA(image.Rect(0, 0, 792, 612)),
		WidthPt:    792,
		HeightPt:   612,
		Rotation:   90,
		PageWidth:  612,
		PageHeight: 792,
		PageCount:  1,
	}
	s := NewSelector(nil)
	s.SetFrame(f)

	// top-left corner of the display is the bottom-left of the page
	s.Press(0, 0)
	sel, err := s.Release(100, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0, sel.Rect.X0, 1e-9)
	assert.InDelta(t, 50, sel.Rect.X1, 1e-9)
	assert.InDelta(t, 692, sel.Rect.Y0, 1e-9)
	assert.InDelta(t, 792, sel.Rect.Y1, 1e-9)
}

func TestSelector_SnapshotIsCopy(t *testing.T) {
	s := NewSelector(nil)
	s.SetFrame(letterFrame(0))
	s.Press(0, 0)
	_, err := s.Release(50, 50)
	require.NoError(t, err)

	snap := s.Selections()
	snap.Textbox.Page = 9
	assert.Equal(t, 0, s.Selections().Textbox.Page)
}

func TestParsePurpose(t *testing.T) {
	tests := []struct {
		in      string
		want    Purpose
		wantErr bool
	}{
		{"", PurposeTextbox, false},
		{"Textbox", PurposeTextbox, false},
		{"area", PurposeArea, false},
		{"circle", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePurpose(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
