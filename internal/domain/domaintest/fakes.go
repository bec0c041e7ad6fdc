// Package domaintest provides in-memory engine and rasterizer fakes. Fake
// documents live on disk as small JSON files so pipeline artifacts can be
// inspected between steps.
package domaintest

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spherical/redact-edge/internal/domain"
)

// State is the persisted content of a fake document.
type State struct {
	Pages []PageState `json:"pages"`
	// Log lists every mutation ever saved into this document, in order.
	Log []string `json:"log,omitempty"`
}

// PageState is one fake page.
type PageState struct {
	Width    float64               `json:"width"`
	Height   float64               `json:"height"`
	Rotation int                   `json:"rotation,omitempty"`
	Text     []string              `json:"text,omitempty"`
	Images   []string              `json:"images,omitempty"`
	Drawn    []string              `json:"drawn,omitempty"`
	Fills    []domain.DocumentRect `json:"fills,omitempty"`
}

// Letter returns a state of n US Letter pages each showing text.
func Letter(n int, text ...string) State {
	st := State{}
	for i := 0; i < n; i++ {
		st.Pages = append(st.Pages, PageState{Width: 612, Height: 792, Text: append([]string(nil), text...)})
	}
	return st
}

// WriteState stores st as a fake document at path.
func WriteState(t testing.TB, path string, st State) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

// ReadState loads a fake document.
func ReadState(t testing.TB, path string) State {
	t.Helper()
	st, err := readState(path)
	if err != nil {
		t.Fatalf("read state %s: %v", path, err)
	}
	return st
}

func readState(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, err
	}
	return st, nil
}

// Engine opens fake documents. Errors can be injected per method name
// ("Open", "RewriteText", "ReplaceImage", "Save", ...) or per file name for Open.
type Engine struct {
	mu       sync.Mutex
	Fail     map[string]error
	OpenFail map[string]error
	Opened   []string
}

// NewEngine returns an engine with no injected failures.
func NewEngine() *Engine {
	return &Engine{Fail: map[string]error{}, OpenFail: map[string]error{}}
}

func (e *Engine) fail(method string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Fail[method]
}

// Open implements domain.Engine.
func (e *Engine) Open(ctx context.Context, path string) (domain.Document, error) {
	e.mu.Lock()
	e.Opened = append(e.Opened, path)
	err := e.OpenFail[filepath.Base(path)]
	if err == nil {
		err = e.Fail["Open"]
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st, err := readState(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ValidationError("file does not exist: "+path, err)
		}
		return nil, domain.DocumentError("cannot open "+path, err)
	}
	if len(st.Pages) == 0 {
		return nil, domain.DocumentError(path+" has no pages", nil)
	}
	return &Document{engine: e, path: path, State: st}, nil
}

// Document is a mutable fake document.
type Document struct {
	engine *Engine
	path   string
	State  State
	Closed bool
}

func (d *Document) check(method string, page int) error {
	if err := d.engine.fail(method); err != nil {
		return err
	}
	if page < 0 || page >= len(d.State.Pages) {
		return domain.ValidationError(fmt.Sprintf("page %d", page), domain.ErrPageOutOfRange)
	}
	return nil
}

func (d *Document) PageCount() int { return len(d.State.Pages) }

func (d *Document) Page(i int) (domain.PageInfo, error) {
	if err := d.check("Page", i); err != nil {
		return domain.PageInfo{}, err
	}
	p := d.State.Pages[i]
	return domain.PageInfo{Index: i, Width: p.Width, Height: p.Height, Rotation: p.Rotation}, nil
}

func (d *Document) RewriteText(fn domain.TextRewriter) (int, error) {
	if err := d.engine.fail("RewriteText"); err != nil {
		return 0, err
	}
	changed := 0
	for i := range d.State.Pages {
		for j, s := range d.State.Pages[i].Text {
			if out, ok := fn(s); ok {
				d.State.Pages[i].Text[j] = out
				changed++
			}
		}
	}
	d.State.Log = append(d.State.Log, fmt.Sprintf("rewrite:%d", changed))
	return changed, nil
}

func (d *Document) Images(page int) ([]domain.ImageRef, error) {
	if err := d.check("Images", page); err != nil {
		return nil, err
	}
	var refs []domain.ImageRef
	for i, name := range d.State.Pages[page].Images {
		refs = append(refs, domain.ImageRef{Index: i, Name: name})
	}
	return refs, nil
}

func (d *Document) ReplaceImage(page int, ref domain.ImageRef, img image.Image) error {
	if err := d.check("ReplaceImage", page); err != nil {
		return err
	}
	images := d.State.Pages[page].Images
	for i, name := range images {
		if name == ref.Name {
			b := img.Bounds()
			images[i] = fmt.Sprintf("replaced(%s,%dx%d)", name, b.Dx(), b.Dy())
			d.State.Log = append(d.State.Log, fmt.Sprintf("replace-image:%d:%s", page, name))
			return nil
		}
	}
	return domain.DocumentError("image not on page: "+ref.Name, nil)
}

func (d *Document) DeleteImage(page int, ref domain.ImageRef) error {
	if err := d.check("DeleteImage", page); err != nil {
		return err
	}
	images := d.State.Pages[page].Images
	for i, name := range images {
		if name == ref.Name {
			d.State.Pages[page].Images = append(images[:i:i], images[i+1:]...)
			d.State.Log = append(d.State.Log, fmt.Sprintf("delete-image:%d:%s", page, name))
			return nil
		}
	}
	return domain.DocumentError("image not on page: "+ref.Name, nil)
}

func (d *Document) DrawText(page int, x, y float64, text string, style domain.TextStyle) error {
	if err := d.check("DrawText", page); err != nil {
		return err
	}
	entry := fmt.Sprintf("%s@%.2f,%.2f/%s/%.0f", text, x, y, style.Font, style.Size)
	d.State.Pages[page].Drawn = append(d.State.Pages[page].Drawn, entry)
	d.State.Log = append(d.State.Log, fmt.Sprintf("draw:%d", page))
	return nil
}

func (d *Document) FillRect(page int, r domain.DocumentRect, fill color.Color) error {
	if err := d.check("FillRect", page); err != nil {
		return err
	}
	d.State.Pages[page].Fills = append(d.State.Pages[page].Fills, r)
	d.State.Log = append(d.State.Log, fmt.Sprintf("fill:%d", page))
	return nil
}

func (d *Document) StripMarkers() error {
	if err := d.engine.fail("StripMarkers"); err != nil {
		return err
	}
	d.State.Log = append(d.State.Log, "strip")
	return nil
}

func (d *Document) Save(path string, opts domain.SaveOptions) error {
	if err := d.engine.fail("Save"); err != nil {
		// leave a partial file behind like a real writer would
		os.WriteFile(path, []byte("{partial"), 0o644)
		return err
	}
	if path == d.path {
		return domain.ValidationError("refusing to overwrite the source document", nil)
	}
	st := d.State
	if opts.Optimize {
		st.Log = append(append([]string(nil), st.Log...), "optimized")
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (d *Document) Close() error {
	d.Closed = true
	return nil
}

// Rasterizer renders fake documents as blank images sized from the page
// geometry.
type Rasterizer struct {
	mu        sync.Mutex
	Renders   []string
	ExportErr error
	RenderErr error
}

// RenderPage implements domain.Rasterizer.
func (r *Rasterizer) RenderPage(ctx context.Context, path string, page int, dpi float64) (*image.RGBA, error) {
	r.mu.Lock()
	r.Renders = append(r.Renders, fmt.Sprintf("%s#%d", filepath.Base(path), page))
	err := r.RenderErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st, err := readState(path)
	if err != nil {
		return nil, domain.RenderError("cannot render "+path, err)
	}
	if page < 0 || page >= len(st.Pages) {
		return nil, domain.ValidationError("page out of range", domain.ErrPageOutOfRange)
	}
	p := st.Pages[page]
	w, h := p.Width, p.Height
	if p.Rotation == 90 || p.Rotation == 270 {
		w, h = h, w
	}
	scale := dpi / 72
	return image.NewRGBA(image.Rect(0, 0, int(w*scale+0.5), int(h*scale+0.5))), nil
}

// ExportJPEG implements domain.Rasterizer by writing placeholder files.
func (r *Rasterizer) ExportJPEG(ctx context.Context, path, dir, stem string, dpi float64, quality int) ([]string, error) {
	r.mu.Lock()
	err := r.ExportErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st, err := readState(path)
	if err != nil {
		return nil, domain.ExportError("cannot export "+path, err)
	}
	var out []string
	for i := range st.Pages {
		p := filepath.Join(dir, fmt.Sprintf("%s_page_%d.jpg", stem, i+1))
		if err := os.WriteFile(p, []byte(strings.Repeat("j", 8)), 0o644); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
