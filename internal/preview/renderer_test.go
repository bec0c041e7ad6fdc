package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/domain/domaintest"
)

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

func newTestRenderer(t *testing.T, pages int) (*Renderer, *countingInvalidator, string) {
	t.Helper()
	path := domaintest.WriteState(t, filepath.Join(t.TempDir(), "doc.pdf"), domaintest.Letter(pages, "hello"))
	r := NewRenderer(domaintest.NewEngine(), &domaintest.Rasterizer{}, 0, nil)
	inv := &countingInvalidator{}
	r.OnInvalidate(inv)
	return r, inv, path
}

func TestRenderer_Open(t *testing.T) {
	r, inv, path := newTestRenderer(t, 3)

	frame, err := r.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Page)
	assert.Equal(t, 3, frame.PageCount)
	assert.Equal(t, DefaultDPI, frame.DPI)
	assert.Equal(t, 1020, frame.WidthPx())
	assert.Equal(t, 1320, frame.HeightPx())
	assert.Equal(t, "Page 1/3", frame.Label())
	assert.False(t, frame.Adjusted)
	assert.Equal(t, 1, inv.calls)
	assert.Equal(t, path, r.Source())
}

func TestRenderer_Navigation(t *testing.T) {
	ctx := context.Background()
	r, inv, path := newTestRenderer(t, 2)
	_, err := r.Open(ctx, path)
	require.NoError(t, err)
	inv.calls = 0

	// first page: Prev does nothing
	frame, err := r.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Page)
	assert.Equal(t, 0, inv.calls)

	frame, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Page)
	assert.Equal(t, 1, inv.calls)

	// last page: Next does nothing
	frame, err = r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Page)
	assert.Equal(t, 1, inv.calls)

	frame, err = r.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Page)
	assert.Equal(t, 2, inv.calls)
}

func TestRenderer_Goto(t *testing.T) {
	ctx := context.Background()
	r, inv, path := newTestRenderer(t, 3)
	_, err := r.Open(ctx, path)
	require.NoError(t, err)
	inv.calls = 0

	frame, err := r.Goto(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Page 3/3", frame.Label())
	assert.Equal(t, 1, inv.calls)

	_, err = r.Goto(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.calls, "same page does not invalidate")

	for _, n := range []int{-1, 3, 10} {
		_, err = r.Goto(ctx, n)
		assert.ErrorIs(t, err, domain.ErrPageOutOfRange)
		assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
	}
	assert.Equal(t, 2, r.Page())
}

func TestRenderer_ResetsStalePage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := domaintest.WriteState(t, filepath.Join(dir, "doc.pdf"), domaintest.Letter(3))
	r := NewRenderer(domaintest.NewEngine(), &domaintest.Rasterizer{}, 72, nil)
	_, err := r.Open(ctx, path)
	require.NoError(t, err)
	_, err = r.Goto(ctx, 2)
	require.NoError(t, err)

	// the document shrinks underneath the preview
	domaintest.WriteState(t, path, domaintest.Letter(1))
	frame, err := r.Render(ctx)
	require.NoError(t, err)
	assert.True(t, frame.Adjusted)
	assert.Equal(t, 0, frame.Page)
	assert.Equal(t, "Page 1/1", frame.Label())
}

func TestRenderer_RotatedFrame(t *testing.T) {
	st := domaintest.Letter(1)
	st.Pages[0].Rotation = 90
	path := domaintest.WriteState(t, filepath.Join(t.TempDir(), "rot.pdf"), st)

	r := NewRenderer(domaintest.NewEngine(), &domaintest.Rasterizer{}, 72, nil)
	frame, err := r.Open(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 792, frame.WidthPx())
	assert.Equal(t, 612, frame.HeightPx())
	assert.Equal(t, 792.0, frame.WidthPt)
	assert.Equal(t, 612.0, frame.PageWidth)
	assert.Equal(t, 90, frame.Rotation)

	m := frame.Mapping()
	rx, ry := m.Ratios()
	assert.InDelta(t, 1.0, rx, 1e-9)
	assert.InDelta(t, 1.0, ry, 1e-9)
}

func TestRenderer_NothingOpen(t *testing.T) {
	r := NewRenderer(domaintest.NewEngine(), &domaintest.Rasterizer{}, 0, nil)
	_, err := r.Render(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDocument)
	_, err = r.ApplyAreaToPreview(context.Background(), domain.Selection{})
	assert.ErrorIs(t, err, domain.ErrNoDocument)
}

func TestRenderer_ApplyAreaToPreview(t *testing.T) {
	ctx := context.Background()
	r, _, path := newTestRenderer(t, 2)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = r.Open(ctx, path)
	require.NoError(t, err)

	sel := domain.Selection{Page: 1, Rect: domain.DocumentRect{X0: 10, Y0: 10, X1: 100, Y1: 50}}
	_, err = r.ApplyAreaToPreview(ctx, sel)
	require.NoError(t, err)
	assert.True(t, r.Mutated())

	first := r.shown
	assert.NotEqual(t, path, first)
	st := domaintest.ReadState(t, first)
	assert.Equal(t, []domain.DocumentRect{sel.Rect}, st.Pages[1].Fills)

	// a second area stacks on the copy and replaces it
	sel.Page = 7
	_, err = r.ApplyAreaToPreview(ctx, sel)
	require.NoError(t, err)
	second := r.shown
	_, err = os.Stat(first)
	assert.True(t, os.IsNotExist(err))
	st = domaintest.ReadState(t, second)
	assert.Len(t, st.Pages[0].Fills, 1, "out of range page falls back to the first page")
	assert.Len(t, st.Pages[1].Fills, 1)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must not change")

	require.NoError(t, r.Close())
	assert.False(t, r.Mutated())
	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err))
}
