package pdf

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/contentstream"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/pdf/pdftest"
)

func openDoc(t *testing.T, path string) *Document {
	t.Helper()
	doc, err := NewEngine(nil).OpenDocument(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc
}

func saveAndReopen(t *testing.T, doc *Document, optimize bool) *Document {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, doc.Save(out, domain.SaveOptions{Optimize: optimize}))
	return openDoc(t, out)
}

func findOps(t *testing.T, doc *Document, page int, operator string) []contentstream.Operation {
	t.Helper()
	pageDict, _, err := doc.pageDict(page)
	require.NoError(t, err)
	ops, err := doc.pageOps(pageDict)
	require.NoError(t, err)

	var out []contentstream.Operation
	for _, op := range ops {
		if op.Operator == operator {
			out = append(out, op)
		}
	}
	return out
}

func TestEngine_OpenAndGeometry(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Lines: []string{"one"}},
		pdftest.Page{Lines: []string{"two"}, Rotate: 90},
	)
	doc := openDoc(t, path)

	assert.Equal(t, 2, doc.PageCount())

	p0, err := doc.Page(0)
	require.NoError(t, err)
	assert.Equal(t, domain.PageInfo{Index: 0, Width: 612, Height: 792}, p0)

	p1, err := doc.Page(1)
	require.NoError(t, err)
	assert.Equal(t, 90, p1.Rotation)

	_, err = doc.Page(2)
	assert.ErrorIs(t, err, domain.ErrPageOutOfRange)
}

func TestEngine_OpenRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.pdf")
	require.NoError(t, os.WriteFile(junk, []byte("not a pdf"), 0o644))

	_, err := NewEngine(nil).Open(context.Background(), junk)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocument))

	_, err = NewEngine(nil).Open(context.Background(), filepath.Join(dir, "missing.pdf"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestEngine_RewriteTextRoundTrip(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Lines: []string{"hello foo", "untouched"}},
		pdftest.Page{Lines: []string{"foofoo"}},
	)
	doc := openDoc(t, path)

	n, err := doc.RewriteText(func(s string) (string, bool) {
		if !strings.Contains(s, "foo") {
			return s, false
		}
		return strings.ReplaceAll(s, "foo", "bar"), true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out := saveAndReopen(t, doc, true)
	text0, err := out.Text(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello bar", "untouched"}, text0)

	text1, err := out.Text(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"barbar"}, text1)
}

func TestEngine_ImagesInPaintOrder(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Images: []string{"Im1", "Im0", "Im1"}},
		pdftest.Page{Lines: []string{"no images"}},
	)
	doc := openDoc(t, path)

	refs, err := doc.Images(0)
	require.NoError(t, err)
	assert.Equal(t, []domain.ImageRef{{Index: 0, Name: "Im1"}, {Index: 1, Name: "Im0"}}, refs)

	refs, err = doc.Images(1)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestEngine_ImagesInsideForms(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Images: []string{"Im0"}, Form: []string{"Im1", "Im0"}},
	)
	doc := openDoc(t, path)

	refs, err := doc.Images(0)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, domain.ImageRef{Index: 0, Name: "Im0"}, refs[0])
	assert.Equal(t, "Im1", refs[1].Name)
	assert.Equal(t, "Im0", refs[2].Name)
	assert.NotZero(t, refs[1].Form)
	assert.Equal(t, refs[1].Form, refs[2].Form)
	assert.Equal(t, []int{1, 2}, []int{refs[1].Index, refs[2].Index})
}

// Inline images have no resource name to target and are not listed.
func TestEngine_InlineImagesNotListed(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"), pdftest.Page{
		Content: "q 10 0 0 10 72 72 cm BI /W 1 /H 1 /CS /G /BPC 8 ID \xff\nEI Q\n",
	})
	doc := openDoc(t, path)

	refs, err := doc.Images(0)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestEngine_DeleteImageInSharedForm(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Form: []string{"Im0", "Im1"}},
		pdftest.Page{Form: []string{"Im0", "Im1"}},
	)
	doc := openDoc(t, path)

	refs, err := doc.Images(0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.NoError(t, doc.DeleteImage(0, refs[0]))
	err = doc.DeleteImage(0, refs[0])
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocument))

	out := saveAndReopen(t, doc, false)
	for page := 0; page < 2; page++ {
		refs, err := out.Images(page)
		require.NoError(t, err)
		require.Len(t, refs, 1, "page %d", page+1)
		assert.Equal(t, "Im1", refs[0].Name)
	}
}

func TestEngine_ReplaceImageInForm(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Images: []string{"Im0"}, Form: []string{"Im0"}},
	)
	doc := openDoc(t, path)

	refs, err := doc.Images(0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.NoError(t, doc.ReplaceImage(0, refs[1], image.NewRGBA(image.Rect(0, 0, 3, 2))))

	out := saveAndReopen(t, doc, true)
	refs, err = out.Images(0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "Im0", refs[0].Name, "the page's own invocation is untouched")
	assert.True(t, strings.HasPrefix(refs[1].Name, "ReImg"), refs[1].Name)
	assert.NotZero(t, refs[1].Form)
}

func TestEngine_DeleteImage(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Images: []string{"Im0", "Im1"}},
	)
	doc := openDoc(t, path)

	require.NoError(t, doc.DeleteImage(0, domain.ImageRef{Index: 0, Name: "Im0"}))
	err := doc.DeleteImage(0, domain.ImageRef{Index: 0, Name: "Im0"})
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocument))

	out := saveAndReopen(t, doc, false)
	refs, err := out.Images(0)
	require.NoError(t, err)
	assert.Equal(t, []domain.ImageRef{{Index: 0, Name: "Im1"}}, refs)
}

func TestEngine_ReplaceImage(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Images: []string{"Im0", "Im1"}},
	)
	doc := openDoc(t, path)

	repl := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for i := range repl.Pix {
		repl.Pix[i] = 0x80
	}
	require.NoError(t, doc.ReplaceImage(0, domain.ImageRef{Index: 1, Name: "Im1"}, repl))

	out := saveAndReopen(t, doc, true)
	refs, err := out.Images(0)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "Im0", refs[0].Name)
	assert.NotEqual(t, "Im1", refs[1].Name)

	pageDict, inh, err := out.pageDict(0)
	require.NoError(t, err)
	res, err := out.readResources(pageDict, inh)
	require.NoError(t, err)
	xobjs, err := out.readSubDict(res, "XObject")
	require.NoError(t, err)
	sd, _, err := out.ctx.DereferenceStreamDict(xobjs[refs[1].Name])
	require.NoError(t, err)
	assert.Equal(t, types.Integer(3), sd.Dict["Width"])
	assert.Equal(t, types.Integer(2), sd.Dict["Height"])
}

func TestEngine_DrawTextAtTopLeft(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Lines: []string{"body"}},
		pdftest.Page{Lines: []string{"other"}},
	)
	doc := openDoc(t, path)

	require.NoError(t, doc.DrawText(0, 72, 72, "Confidential\nInternal", domain.DefaultTextStyle()))
	out := saveAndReopen(t, doc, false)

	text, err := out.Text(0)
	require.NoError(t, err)
	assert.Contains(t, text, "Confidential")
	assert.Contains(t, text, "Internal")

	tds := findOps(t, out, 0, "Td")
	last := tds[len(tds)-1]
	assert.Equal(t, []contentstream.Object{contentstream.Int(72), contentstream.Int(708)}, last.Operands)

	tls := findOps(t, out, 0, "TL")
	require.Len(t, tls, 1)
	assert.Equal(t, contentstream.Real(14.4), tls[0].Operands[0])

	other, err := out.Text(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, other)
}

func TestEngine_FillRectOnlyTouchesItsPage(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"),
		pdftest.Page{Lines: []string{"a"}},
		pdftest.Page{Lines: []string{"b"}},
		pdftest.Page{Lines: []string{"c"}},
	)
	doc := openDoc(t, path)

	rect := domain.DocumentRect{X0: 50, Y0: 50, X1: 300, Y1: 150}
	require.NoError(t, doc.FillRect(1, rect, color.White))
	out := saveAndReopen(t, doc, false)

	res := findOps(t, out, 1, "re")
	require.Len(t, res, 1)
	assert.Equal(t, []contentstream.Object{
		contentstream.Int(50), contentstream.Int(642), contentstream.Int(250), contentstream.Int(100),
	}, res[0].Operands)

	fills := findOps(t, out, 1, "rg")
	require.Len(t, fills, 1)
	assert.Equal(t, []contentstream.Object{contentstream.Int(1), contentstream.Int(1), contentstream.Int(1)}, fills[0].Operands)

	assert.Empty(t, findOps(t, out, 0, "re"))
	assert.Empty(t, findOps(t, out, 2, "re"))
}

func TestEngine_FillRectClipsToPage(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"), pdftest.Page{Lines: []string{"a"}})
	doc := openDoc(t, path)

	require.NoError(t, doc.FillRect(0, domain.DocumentRect{X0: 600, Y0: -20, X1: 700, Y1: 10}, color.White))
	res := findOps(t, doc, 0, "re")
	require.Len(t, res, 1)
	assert.Equal(t, []contentstream.Object{
		contentstream.Int(600), contentstream.Int(782), contentstream.Int(12), contentstream.Int(10),
	}, res[0].Operands)

	// entirely outside the page
	require.NoError(t, doc.FillRect(0, domain.DocumentRect{X0: 700, Y0: 0, X1: 800, Y1: 10}, color.White))
	assert.Len(t, findOps(t, doc, 0, "re"), 1)
}

func TestEngine_StripMarkersRestoresInfo(t *testing.T) {
	const created = "D:20200102030405Z"
	withInfo := pdftest.Doc{
		Pages:        []pdftest.Page{{Lines: []string{"secret"}}},
		Producer:     "Acme Writer 2.1",
		CreationDate: created,
	}
	tests := []struct {
		name         string
		doc          pdftest.Doc
		strip        bool
		optimize     bool
		wantProducer string
		wantCreated  bool
	}{
		{name: "stripped", doc: withInfo, strip: true, wantProducer: "Acme Writer 2.1", wantCreated: true},
		{name: "stripped and optimized", doc: withInfo, strip: true, optimize: true, wantProducer: "Acme Writer 2.1", wantCreated: true},
		{name: "source without info", doc: pdftest.Doc{Pages: withInfo.Pages}, strip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			doc := openDoc(t, pdftest.WriteDoc(t, filepath.Join(dir, "in.pdf"), tt.doc))
			require.NoError(t, doc.StripMarkers())
			out := filepath.Join(dir, "out.pdf")
			require.NoError(t, doc.Save(out, domain.SaveOptions{Optimize: tt.optimize}))

			ctx, err := api.ReadContextFile(out)
			require.NoError(t, err)
			require.NoError(t, api.ValidateContext(ctx))
			assert.Equal(t, tt.wantProducer, ctx.Producer)
			if tt.wantCreated {
				assert.Contains(t, ctx.XRefTable.CreationDate, "20200102030405")
			} else {
				assert.Empty(t, ctx.XRefTable.CreationDate)
			}

			text, err := openDoc(t, out).Text(0)
			require.NoError(t, err)
			assert.Equal(t, []string{"secret"}, text)
		})
	}
}

func TestEngine_SaveWithoutStripKeepsWriterInfo(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.WriteDoc(t, filepath.Join(dir, "in.pdf"), pdftest.Doc{Producer: "Acme Writer 2.1"})
	out := filepath.Join(dir, "out.pdf")
	require.NoError(t, openDoc(t, in).Save(out, domain.SaveOptions{}))

	ctx, err := api.ReadContextFile(out)
	require.NoError(t, err)
	require.NoError(t, api.ValidateContext(ctx))
	assert.True(t, strings.HasPrefix(ctx.Producer, "pdfcpu"), ctx.Producer)
}

func TestEngine_StripMarkersClosed(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"))
	doc, err := NewEngine(nil).OpenDocument(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, doc.Close())

	assert.ErrorIs(t, doc.StripMarkers(), domain.ErrNoDocument)
}

func TestEngine_SaveRefusesSource(t *testing.T) {
	path := pdftest.Write(t, filepath.Join(t.TempDir(), "in.pdf"), pdftest.Page{Lines: []string{"a"}})
	doc := openDoc(t, path)

	err := doc.Save(path, domain.SaveOptions{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}
