package ops

import (
	"context"
	"fmt"
	"image/color"

	"github.com/spherical/redact-edge/internal/coords"
	"github.com/spherical/redact-edge/internal/domain"
)

// AddTextbox draws text with its top-left at the selection's top-left corner.
type AddTextbox struct {
	edit
	text string
	sel  domain.Selection
}

func NewAddTextbox(deps Deps, text string, sel domain.Selection) *AddTextbox {
	return &AddTextbox{
		edit: edit{deps: deps.withDefaults(), kind: domain.OpAddTextbox, strip: true},
		text: text,
		sel:  sel,
	}
}

func (o *AddTextbox) Kind() domain.OperationKind { return domain.OpAddTextbox }

func (o *AddTextbox) Apply(ctx context.Context, in, out string) Result {
	if o.text == "" {
		return Skipped("no textbox text")
	}
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		page := clampPage(doc, o.sel.Page, o.deps.Logger)
		r := o.sel.Rect.Normalize()
		if err := doc.DrawText(page, r.X0, r.Y0, o.text, domain.DefaultTextStyle()); err != nil {
			return false, "", err
		}
		return true, fmt.Sprintf("text drawn at (%.1f, %.1f) on page %d", r.X0, r.Y0, page+1), nil
	})
}

// DeleteArea covers the selection with an opaque white rectangle.
type DeleteArea struct {
	edit
	sel domain.Selection
}

func NewDeleteArea(deps Deps, sel domain.Selection) *DeleteArea {
	return &DeleteArea{
		edit: edit{deps: deps.withDefaults(), kind: domain.OpDeleteArea},
		sel:  sel,
	}
}

func (o *DeleteArea) Kind() domain.OperationKind { return domain.OpDeleteArea }

func (o *DeleteArea) Apply(ctx context.Context, in, out string) Result {
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		page := clampPage(doc, o.sel.Page, o.deps.Logger)
		info, err := doc.Page(page)
		if err != nil {
			return false, "", err
		}
		r := coords.Clip(o.sel.Rect, info.Width, info.Height)
		if r.IsEmpty() {
			return false, "area does not overlap the page", nil
		}
		if err := doc.FillRect(page, r, color.White); err != nil {
			return false, "", err
		}
		return true, fmt.Sprintf("area %s filled on page %d", r, page+1), nil
	})
}
