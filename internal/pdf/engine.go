// Package pdf adapts pdfcpu and go-fitz to the document and raster engine
// interfaces used by the operations and the preview.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/spherical/redact-edge/internal/contentstream"
	"github.com/spherical/redact-edge/internal/coords"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

// Engine opens PDF documents for editing with pdfcpu.
type Engine struct {
	validator *Validator
	logger    *observability.Logger
}

// NewEngine creates a pdfcpu backed engine.
func NewEngine(logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Engine{
		validator: NewValidator(logger),
		logger:    logger.WithComponent("pdf-engine"),
	}
}

// Open reads, validates and optimizes the document at path.
func (e *Engine) Open(ctx context.Context, path string) (domain.Document, error) {
	return e.OpenDocument(ctx, path)
}

// OpenDocument is Open returning the concrete type.
func (e *Engine) OpenDocument(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.validator.ValidatePDFPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("cannot read %s", path), err)
	}

	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, domain.DocumentError(fmt.Sprintf("cannot open %s", path), err)
	}
	if pctx.PageCount < 1 {
		return nil, domain.DocumentError(fmt.Sprintf("%s has no pages", path), nil)
	}

	e.logger.Debug().Str("path", path).Int("pages", pctx.PageCount).Msg("Opened document")

	return &Document{
		ctx:      pctx,
		path:     path,
		logger:   e.logger.WithDocument(path),
		fonts:    map[string]types.IndirectRef{},
		producer: pctx.Producer,
		created:  pctx.XRefTable.CreationDate,
	}, nil
}

// Document is an opened pdfcpu context. Page indices are zero-based.
type Document struct {
	ctx    *model.Context
	path   string
	logger *observability.Logger
	fonts  map[string]types.IndirectRef

	// Info entries of the source, restored on Save after StripMarkers.
	producer  string
	created   string
	stripInfo bool
}

type box struct {
	llx, lly, urx, ury float64
}

func (b box) width() float64  { return b.urx - b.llx }
func (b box) height() float64 { return b.ury - b.lly }

var letterBox = box{0, 0, 612, 792}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	if d.ctx == nil {
		return 0
	}
	return d.ctx.PageCount
}

// Page returns the geometry of page index.
func (d *Document) Page(index int) (domain.PageInfo, error) {
	pageDict, inh, err := d.pageDict(index)
	if err != nil {
		return domain.PageInfo{}, err
	}
	b := d.pageBox(pageDict, inh)
	return domain.PageInfo{
		Index:    index,
		Width:    b.width(),
		Height:   b.height(),
		Rotation: d.pageRotation(pageDict, inh),
	}, nil
}

func (d *Document) pageDict(index int) (types.Dict, *model.InheritedPageAttrs, error) {
	if d.ctx == nil {
		return nil, nil, domain.DocumentError("document is closed", domain.ErrNoDocument)
	}
	if index < 0 || index >= d.ctx.PageCount {
		return nil, nil, domain.ValidationError(
			fmt.Sprintf("page %d outside 0..%d", index, d.ctx.PageCount-1), domain.ErrPageOutOfRange)
	}
	pageDict, _, inh, err := d.ctx.PageDict(index+1, false)
	if err != nil {
		return nil, nil, domain.DocumentError(fmt.Sprintf("page %d", index+1), err)
	}
	if pageDict == nil {
		return nil, nil, domain.DocumentError(fmt.Sprintf("page %d has no dictionary", index+1), nil)
	}
	return pageDict, inh, nil
}

// pageBox returns the visible box: CropBox intersected with MediaBox.
func (d *Document) pageBox(pageDict types.Dict, inh *model.InheritedPageAttrs) box {
	media, ok := d.boxEntry(pageDict, "MediaBox")
	if !ok && inh != nil && inh.MediaBox != nil {
		media, ok = rectBox(inh.MediaBox), true
	}
	if !ok {
		media = letterBox
	}

	crop, ok := d.boxEntry(pageDict, "CropBox")
	if !ok && inh != nil && inh.CropBox != nil {
		crop, ok = rectBox(inh.CropBox), true
	}
	if !ok {
		return media
	}

	b := box{
		llx: max(crop.llx, media.llx),
		lly: max(crop.lly, media.lly),
		urx: min(crop.urx, media.urx),
		ury: min(crop.ury, media.ury),
	}
	if b.width() <= 0 || b.height() <= 0 {
		return media
	}
	return b
}

func rectBox(r *types.Rectangle) box {
	return box{
		llx: min(r.LL.X, r.UR.X),
		lly: min(r.LL.Y, r.UR.Y),
		urx: max(r.LL.X, r.UR.X),
		ury: max(r.LL.Y, r.UR.Y),
	}
}

func (d *Document) boxEntry(dict types.Dict, key string) (box, bool) {
	obj, found := dict.Find(key)
	if !found {
		return box{}, false
	}
	obj, err := d.ctx.Dereference(obj)
	if err != nil {
		return box{}, false
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) != 4 {
		return box{}, false
	}
	var v [4]float64
	for i, o := range arr {
		o, err := d.ctx.Dereference(o)
		if err != nil {
			return box{}, false
		}
		n, ok := number(o)
		if !ok {
			return box{}, false
		}
		v[i] = n
	}
	b := box{llx: min(v[0], v[2]), lly: min(v[1], v[3]), urx: max(v[0], v[2]), ury: max(v[1], v[3])}
	if b.width() <= 0 || b.height() <= 0 {
		return box{}, false
	}
	return b, true
}

func (d *Document) pageRotation(pageDict types.Dict, inh *model.InheritedPageAttrs) int {
	if obj, found := pageDict.Find("Rotate"); found {
		if obj, err := d.ctx.Dereference(obj); err == nil {
			if n, ok := number(obj); ok {
				return coords.NormalizeRotation(int(n))
			}
		}
	}
	if inh != nil {
		return coords.NormalizeRotation(inh.Rotate)
	}
	return 0
}

func number(o types.Object) (float64, bool) {
	switch v := o.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}

// pageOps returns the parsed, concatenated content of a page.
func (d *Document) pageOps(pageDict types.Dict) ([]contentstream.Operation, error) {
	content, err := d.pageContent(pageDict)
	if err != nil {
		return nil, err
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return nil, domain.DocumentError("cannot parse page content", err)
	}
	return ops, nil
}

func (d *Document) pageContent(pageDict types.Dict) ([]byte, error) {
	obj, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	deref, err := d.ctx.Dereference(obj)
	if err != nil {
		return nil, domain.DocumentError("cannot resolve page contents", err)
	}

	arr, ok := deref.(types.Array)
	if !ok {
		return d.streamBytes(obj)
	}

	var buf bytes.Buffer
	for _, item := range arr {
		b, err := d.streamBytes(item)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func (d *Document) streamBytes(obj types.Object) ([]byte, error) {
	sd, _, err := d.ctx.DereferenceStreamDict(obj)
	if err != nil {
		return nil, domain.DocumentError("cannot resolve content stream", err)
	}
	if sd == nil {
		return nil, nil
	}
	if len(sd.Content) == 0 && len(sd.Raw) > 0 {
		if err := sd.Decode(); err != nil {
			return nil, domain.DocumentError("cannot decode content stream", err)
		}
	}
	return sd.Content, nil
}

// newStream adds a Flate compressed stream object carrying content.
func (d *Document) newStream(content []byte, entries types.Dict) (*types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(content)
	if err != nil {
		return nil, err
	}
	for k, v := range entries {
		sd.Dict[k] = v
	}
	if err := encodeStream(sd); err != nil {
		return nil, err
	}
	return d.ctx.IndRefForNewObject(*sd)
}

func encodeStream(sd *types.StreamDict) error {
	if err := sd.Encode(); err != nil {
		return err
	}
	n := int64(len(sd.Raw))
	sd.StreamLength = &n
	sd.Dict["Length"] = types.Integer(n)
	return nil
}

// setPageContent replaces a page's content with a single new stream.
func (d *Document) setPageContent(pageDict types.Dict, ops []contentstream.Operation) error {
	ref, err := d.newStream(contentstream.Write(ops), nil)
	if err != nil {
		return domain.DocumentError("cannot write page content", err)
	}
	pageDict["Contents"] = *ref
	return nil
}

// appendContent paints ops on top of the existing page content. The existing
// content is wrapped in q/Q so its graphics state cannot leak.
func (d *Document) appendContent(pageDict types.Dict, ops []contentstream.Operation) error {
	var existing types.Array
	if obj, found := pageDict.Find("Contents"); found {
		deref, err := d.ctx.Dereference(obj)
		if err != nil {
			return domain.DocumentError("cannot resolve page contents", err)
		}
		if arr, ok := deref.(types.Array); ok {
			existing = append(existing, arr...)
		} else {
			existing = append(existing, obj)
		}
	}

	open, err := d.newStream([]byte("q\n"), nil)
	if err != nil {
		return domain.DocumentError("cannot write page content", err)
	}
	body := append([]byte("Q\n"), contentstream.Write(ops)...)
	closing, err := d.newStream(body, nil)
	if err != nil {
		return domain.DocumentError("cannot write page content", err)
	}

	contents := types.Array{*open}
	contents = append(contents, existing...)
	contents = append(contents, *closing)
	pageDict["Contents"] = contents
	return nil
}

// resources returns a private copy of the page's effective resources,
// installed on the page so edits stay local to it.
func (d *Document) resources(pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	res, err := d.readResources(pageDict, inh)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = types.NewDict()
	} else {
		res = res.Clone().(types.Dict)
	}
	pageDict["Resources"] = res
	return res, nil
}

func (d *Document) readResources(pageDict types.Dict, inh *model.InheritedPageAttrs) (types.Dict, error) {
	if obj, found := pageDict.Find("Resources"); found {
		res, err := d.ctx.DereferenceDict(obj)
		if err != nil {
			return nil, domain.DocumentError("cannot resolve page resources", err)
		}
		return res, nil
	}
	if inh != nil {
		return inh.Resources, nil
	}
	return nil, nil
}

// subDict returns a private copy of res[key], installed back into res.
func (d *Document) subDict(res types.Dict, key string) (types.Dict, error) {
	sub, err := d.readSubDict(res, key)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = types.NewDict()
	} else {
		sub = sub.Clone().(types.Dict)
	}
	res[key] = sub
	return sub, nil
}

func (d *Document) readSubDict(res types.Dict, key string) (types.Dict, error) {
	if res == nil {
		return nil, nil
	}
	obj, found := res.Find(key)
	if !found {
		return nil, nil
	}
	sub, err := d.ctx.DereferenceDict(obj)
	if err != nil {
		return nil, domain.DocumentError(fmt.Sprintf("cannot resolve /%s resources", key), err)
	}
	return sub, nil
}

func subtype(sd *types.StreamDict) string {
	if sd == nil {
		return ""
	}
	if n, ok := sd.Dict["Subtype"].(types.Name); ok {
		return string(n)
	}
	return ""
}

func uniqueName(dict types.Dict, prefix string) string {
	for i := 0; ; i++ {
		name := fmt.Sprintf("%s%d", prefix, i)
		if _, taken := dict[name]; !taken {
			return name
		}
	}
}

// RewriteText applies fn to every text-showing operand on every page and in
// the form XObjects the pages paint.
func (d *Document) RewriteText(fn domain.TextRewriter) (int, error) {
	changed := 0
	visited := map[int]bool{}
	for i := 0; i < d.PageCount(); i++ {
		pageDict, inh, err := d.pageDict(i)
		if err != nil {
			return changed, err
		}
		ops, err := d.pageOps(pageDict)
		if err != nil {
			return changed, domain.DocumentError(fmt.Sprintf("page %d", i+1), err)
		}
		if out, n := contentstream.RewriteText(ops, fn); n > 0 {
			if err := d.setPageContent(pageDict, out); err != nil {
				return changed, err
			}
			changed += n
		}

		res, err := d.readResources(pageDict, inh)
		if err != nil {
			return changed, err
		}
		n, err := d.rewriteForms(res, fn, visited)
		changed += n
		if err != nil {
			return changed, err
		}
	}
	return changed, nil
}

func (d *Document) rewriteForms(res types.Dict, fn domain.TextRewriter, visited map[int]bool) (int, error) {
	xobjs, err := d.readSubDict(res, "XObject")
	if err != nil || xobjs == nil {
		return 0, err
	}

	changed := 0
	for name, obj := range xobjs {
		ref, ok := obj.(types.IndirectRef)
		if !ok {
			continue
		}
		nr := ref.ObjectNumber.Value()
		if visited[nr] {
			continue
		}
		visited[nr] = true

		sd, _, err := d.ctx.DereferenceStreamDict(ref)
		if err != nil || subtype(sd) != "Form" {
			continue
		}
		if len(sd.Content) == 0 && len(sd.Raw) > 0 {
			if err := sd.Decode(); err != nil {
				d.logger.Warn().Str("xobject", name).Err(err).Msg("Skipping undecodable form")
				continue
			}
		}
		ops, err := contentstream.Parse(sd.Content)
		if err != nil {
			d.logger.Warn().Str("xobject", name).Err(err).Msg("Skipping unparsable form")
			continue
		}
		if out, n := contentstream.RewriteText(ops, fn); n > 0 {
			sd.Content = contentstream.Write(out)
			if err := encodeStream(sd); err != nil {
				return changed, domain.DocumentError(fmt.Sprintf("cannot encode form %s", name), err)
			}
			if entry, ok := d.ctx.Table[nr]; ok && entry != nil {
				entry.Object = *sd
			}
			changed += n
		}

		formRes, err := d.ctx.DereferenceDict(sd.Dict["Resources"])
		if err == nil && formRes != nil {
			n, err := d.rewriteForms(formRes, fn, visited)
			changed += n
			if err != nil {
				return changed, err
			}
		}
	}
	return changed, nil
}

// Images lists the image XObjects a page paints, in order of first
// invocation, including those painted by the form XObjects it uses. Inline
// images are not listed.
func (d *Document) Images(page int) ([]domain.ImageRef, error) {
	pageDict, inh, err := d.pageDict(page)
	if err != nil {
		return nil, err
	}
	ops, err := d.pageOps(pageDict)
	if err != nil {
		return nil, err
	}
	res, err := d.readResources(pageDict, inh)
	if err != nil {
		return nil, err
	}

	refs := []domain.ImageRef{}
	if err := d.collectImages(ops, res, 0, map[int]bool{}, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (d *Document) collectImages(ops []contentstream.Operation, res types.Dict, form int, visited map[int]bool, refs *[]domain.ImageRef) error {
	xobjs, err := d.readSubDict(res, "XObject")
	if err != nil || xobjs == nil {
		return err
	}
	for _, n := range contentstream.DistinctNames(ops, nil) {
		obj, ok := xobjs[string(n)]
		if !ok {
			continue
		}
		sd, _, err := d.ctx.DereferenceStreamDict(obj)
		if err != nil || sd == nil {
			continue
		}
		switch subtype(sd) {
		case "Image":
			*refs = append(*refs, domain.ImageRef{Index: len(*refs), Name: string(n), Form: form})
		case "Form":
			ref, ok := obj.(types.IndirectRef)
			if !ok {
				continue
			}
			nr := ref.ObjectNumber.Value()
			if visited[nr] {
				continue
			}
			visited[nr] = true
			formOps, formRes, err := d.formOps(sd)
			if err != nil {
				d.logger.Warn().Str("xobject", string(n)).Err(err).Msg("Skipping unreadable form")
				continue
			}
			if err := d.collectImages(formOps, formRes, nr, visited, refs); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Document) formOps(sd *types.StreamDict) ([]contentstream.Operation, types.Dict, error) {
	if len(sd.Content) == 0 && len(sd.Raw) > 0 {
		if err := sd.Decode(); err != nil {
			return nil, nil, err
		}
	}
	ops, err := contentstream.Parse(sd.Content)
	if err != nil {
		return nil, nil, err
	}
	res, err := d.ctx.DereferenceDict(sd.Dict["Resources"])
	return ops, res, err
}

type xobjectEdit func(ops []contentstream.Operation, xobjs types.Dict) ([]contentstream.Operation, error)

// editPainter runs edit over the content that paints ref: the page content,
// or the form XObject ref.Form. A form shared by several pages changes for
// all of them.
func (d *Document) editPainter(page int, ref domain.ImageRef, edit xobjectEdit) error {
	if d.ctx == nil {
		return domain.DocumentError("document is closed", domain.ErrNoDocument)
	}
	if ref.Form != 0 {
		return d.editForm(ref.Form, edit)
	}
	pageDict, inh, err := d.pageDict(page)
	if err != nil {
		return err
	}
	ops, err := d.pageOps(pageDict)
	if err != nil {
		return err
	}
	res, err := d.resources(pageDict, inh)
	if err != nil {
		return err
	}
	xobjs, err := d.subDict(res, "XObject")
	if err != nil {
		return err
	}
	out, err := edit(ops, xobjs)
	if err != nil {
		return err
	}
	return d.setPageContent(pageDict, out)
}

func (d *Document) editForm(nr int, edit xobjectEdit) error {
	sd, _, err := d.ctx.DereferenceStreamDict(*types.NewIndirectRef(nr, 0))
	if err != nil || subtype(sd) != "Form" {
		return domain.DocumentError(fmt.Sprintf("object %d is not a form", nr), err)
	}
	ops, res, err := d.formOps(sd)
	if err != nil {
		return domain.DocumentError(fmt.Sprintf("cannot read form %d", nr), err)
	}
	if res == nil {
		res = types.NewDict()
	} else {
		res = res.Clone().(types.Dict)
	}
	xobjs, err := d.subDict(res, "XObject")
	if err != nil {
		return err
	}
	out, err := edit(ops, xobjs)
	if err != nil {
		return err
	}

	sd.Dict["Resources"] = res
	sd.Content = contentstream.Write(out)
	if err := encodeStream(sd); err != nil {
		return domain.DocumentError(fmt.Sprintf("cannot encode form %d", nr), err)
	}
	if entry, ok := d.ctx.Table[nr]; ok && entry != nil {
		entry.Object = *sd
	}
	return nil
}

// ReplaceImage repaints every invocation of ref with img. The original
// XObject is left untouched for other pages that share it.
func (d *Document) ReplaceImage(page int, ref domain.ImageRef, img image.Image) error {
	if d.ctx == nil {
		return domain.DocumentError("document is closed", domain.ErrNoDocument)
	}
	samples, w, h := rgbSamples(img)
	imgRef, err := d.newStream(samples, types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(w),
		"Height":           types.Integer(h),
		"ColorSpace":       types.Name("DeviceRGB"),
		"BitsPerComponent": types.Integer(8),
	})
	if err != nil {
		return domain.DocumentError("cannot embed replacement image", err)
	}

	return d.editPainter(page, ref, func(ops []contentstream.Operation, xobjs types.Dict) ([]contentstream.Operation, error) {
		name := uniqueName(xobjs, "ReImg")
		out, n := contentstream.RenameInvocations(ops, contentstream.Name(ref.Name), contentstream.Name(name))
		if n == 0 {
			return nil, domain.DocumentError(fmt.Sprintf("image %s not painted on page %d", ref.Name, page+1), nil)
		}
		xobjs[name] = *imgRef
		delete(xobjs, ref.Name)
		return out, nil
	})
}

// DeleteImage removes every invocation of ref.
func (d *Document) DeleteImage(page int, ref domain.ImageRef) error {
	return d.editPainter(page, ref, func(ops []contentstream.Operation, xobjs types.Dict) ([]contentstream.Operation, error) {
		out, n := contentstream.RemoveInvocations(ops, contentstream.Name(ref.Name))
		if n == 0 {
			return nil, domain.DocumentError(fmt.Sprintf("image %s not painted on page %d", ref.Name, page+1), nil)
		}
		delete(xobjs, ref.Name)
		return out, nil
	})
}

// DrawText draws text with the top of its first line at (x, y), given in
// top-left oriented page points. Lines are split on newlines.
func (d *Document) DrawText(page int, x, y float64, text string, style domain.TextStyle) error {
	pageDict, inh, err := d.pageDict(page)
	if err != nil {
		return err
	}
	if style.Font == "" {
		style.Font = domain.DefaultTextStyle().Font
	}
	if style.Size <= 0 {
		style.Size = domain.DefaultTextStyle().Size
	}
	if style.Leading <= 0 {
		style.Leading = domain.DefaultTextStyle().Leading
	}
	if style.Color == nil {
		style.Color = color.Black
	}

	res, err := d.resources(pageDict, inh)
	if err != nil {
		return err
	}
	fontName, err := d.fontResource(res, style.Font)
	if err != nil {
		return err
	}

	b := d.pageBox(pageDict, inh)
	r, g, bl := rgb(style.Color)
	ops := []contentstream.Operation{
		{Operator: "BT"},
		{Operator: "Tf", Operands: []contentstream.Object{contentstream.Name(fontName), contentstream.Real(style.Size)}},
		{Operator: "rg", Operands: []contentstream.Object{r, g, bl}},
		{Operator: "TL", Operands: []contentstream.Object{contentstream.Real(style.Size * style.Leading)}},
		{Operator: "Td", Operands: []contentstream.Object{
			contentstream.Real(b.llx + x),
			contentstream.Real(b.ury - y - style.Size),
		}},
	}
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if i > 0 {
			ops = append(ops, contentstream.Operation{Operator: "T*"})
		}
		ops = append(ops, contentstream.Operation{
			Operator: "Tj",
			Operands: []contentstream.Object{contentstream.String{Bytes: contentstream.EncodeText(line)}},
		})
	}
	ops = append(ops, contentstream.Operation{Operator: "ET"})

	return d.appendContent(pageDict, ops)
}

func (d *Document) fontResource(res types.Dict, baseFont string) (string, error) {
	fonts, err := d.subDict(res, "Font")
	if err != nil {
		return "", err
	}

	ref, ok := d.fonts[baseFont]
	if !ok {
		r, err := d.ctx.IndRefForNewObject(types.Dict{
			"Type":     types.Name("Font"),
			"Subtype":  types.Name("Type1"),
			"BaseFont": types.Name(baseFont),
			"Encoding": types.Name("WinAnsiEncoding"),
		})
		if err != nil {
			return "", domain.DocumentError("cannot add font "+baseFont, err)
		}
		ref = *r
		d.fonts[baseFont] = ref
	}

	for name, obj := range fonts {
		if existing, ok := obj.(types.IndirectRef); ok && existing.ObjectNumber == ref.ObjectNumber {
			return name, nil
		}
	}
	name := uniqueName(fonts, "ReF")
	fonts[name] = ref
	return name, nil
}

// FillRect paints r, given in top-left oriented page points, with fill. The
// rectangle is clipped to the page box.
func (d *Document) FillRect(page int, r domain.DocumentRect, fill color.Color) error {
	pageDict, inh, err := d.pageDict(page)
	if err != nil {
		return err
	}
	b := d.pageBox(pageDict, inh)
	r = coords.Clip(r, b.width(), b.height())
	if r.IsEmpty() {
		return nil
	}
	if fill == nil {
		fill = color.White
	}

	cr, cg, cb := rgb(fill)
	ops := []contentstream.Operation{
		{Operator: "rg", Operands: []contentstream.Object{cr, cg, cb}},
		{Operator: "re", Operands: []contentstream.Object{
			contentstream.Real(b.llx + r.X0),
			contentstream.Real(b.ury - r.Y1),
			contentstream.Real(r.Width()),
			contentstream.Real(r.Height()),
		}},
		{Operator: "f"},
	}
	return d.appendContent(pageDict, ops)
}

func rgb(c color.Color) (r, g, b contentstream.Real) {
	cr, cg, cb, _ := c.RGBA()
	return contentstream.Real(float64(cr) / 0xffff),
		contentstream.Real(float64(cg) / 0xffff),
		contentstream.Real(float64(cb) / 0xffff)
}

// StripMarkers makes Save undo the document info pdfcpu stamps on every
// write: Producer and CreationDate go back to the source's values, or are
// dropped when the source had none. ModDate keeps the save time.
func (d *Document) StripMarkers() error {
	if d.ctx == nil {
		return domain.DocumentError("document is closed", domain.ErrNoDocument)
	}
	d.stripInfo = true
	return nil
}

// restoreInfo appends an incremental update to data, a document pdfcpu just
// wrote, that carries the source's Producer and CreationDate.
func (d *Document) restoreInfo(data []byte) ([]byte, error) {
	ictx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, err
	}
	if ictx.Info == nil || ictx.Encrypt != nil {
		return data, nil
	}
	nr := ictx.Info.ObjectNumber.Value()
	info, err := ictx.DereferenceDict(*ictx.Info)
	if err != nil {
		return nil, fmt.Errorf("info dict %d: %w", nr, err)
	}
	if info == nil {
		return data, nil
	}

	for key, val := range map[string]string{"Producer": d.producer, "CreationDate": d.created} {
		if val == "" {
			delete(info, key)
			continue
		}
		lit, err := infoLiteral(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		info[key] = lit
	}
	if entry, ok := ictx.Table[nr]; ok && entry != nil {
		entry.Object = info
	}

	ictx.Write.Increment = true
	ictx.Write.Offset = ictx.Read.FileSize
	ictx.Write.IncrementWithObjNr(nr)
	ictx.WriteXRefStream = ictx.Read.UsingXRefStreams

	var tail bytes.Buffer
	if err := api.WriteIncrement(ictx, &tail); err != nil {
		return nil, err
	}
	d.logger.Debug().Int("bytes", tail.Len()).Msg("Restored document info")
	return append(data, tail.Bytes()...), nil
}

func infoLiteral(s string) (types.StringLiteral, error) {
	esc, err := types.Escape(s)
	for _, r := range s {
		if r > 0x7f {
			esc, err = types.EscapedUTF16String(s)
			break
		}
	}
	if err != nil {
		return "", err
	}
	return types.StringLiteral(*esc), nil
}

// Text returns the decoded text operands painted directly by a page.
func (d *Document) Text(page int) ([]string, error) {
	pageDict, _, err := d.pageDict(page)
	if err != nil {
		return nil, err
	}
	ops, err := d.pageOps(pageDict)
	if err != nil {
		return nil, err
	}
	return contentstream.Text(ops), nil
}

// Save writes the document to path, never over the source.
func (d *Document) Save(path string, opts domain.SaveOptions) error {
	if d.ctx == nil {
		return domain.DocumentError("document is closed", domain.ErrNoDocument)
	}
	if path == d.path {
		return domain.ValidationError("refusing to overwrite the source document", nil)
	}
	if opts.Optimize {
		if err := api.OptimizeContext(d.ctx); err != nil {
			return domain.DocumentError("optimize failed", err)
		}
	}

	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return domain.DocumentError(fmt.Sprintf("cannot write %s", path), err)
	}
	data := buf.Bytes()
	if d.stripInfo {
		restored, err := d.restoreInfo(data)
		if err != nil {
			return domain.DocumentError("cannot restore document info", err)
		}
		data = restored
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("cannot write %s", path), err)
	}
	return nil
}

// Close releases the context.
func (d *Document) Close() error {
	d.ctx = nil
	return nil
}
