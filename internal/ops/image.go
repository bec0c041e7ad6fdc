package ops

import (
	"context"
	"fmt"

	"github.com/spherical/redact-edge/internal/domain"
)

// ReplaceImage swaps targeted images for a picture loaded from disk.
type ReplaceImage struct {
	edit
	path   string
	target domain.ImageTarget
}

func NewReplaceImage(deps Deps, path string, target domain.ImageTarget) *ReplaceImage {
	return &ReplaceImage{
		edit:   edit{deps: deps.withDefaults(), kind: domain.OpReplaceImage},
		path:   path,
		target: target,
	}
}

func (o *ReplaceImage) Kind() domain.OperationKind { return domain.OpReplaceImage }

func (o *ReplaceImage) Apply(ctx context.Context, in, out string) Result {
	if o.path == "" {
		return Skipped("no replacement image")
	}
	img, err := o.deps.LoadImage(o.path)
	if err != nil {
		return Failed(err)
	}
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		n, err := eachImage(doc, o.target, func(page int, ref domain.ImageRef) error {
			return doc.ReplaceImage(page, ref, img)
		})
		if err != nil {
			return false, "", err
		}
		if n == 0 {
			return false, fmt.Sprintf("no image matches %s", o.target), nil
		}
		return true, fmt.Sprintf("replaced %d image(s)", n), nil
	})
}

// DeleteImage removes targeted images.
type DeleteImage struct {
	edit
	target domain.ImageTarget
}

func NewDeleteImage(deps Deps, target domain.ImageTarget) *DeleteImage {
	return &DeleteImage{
		edit:   edit{deps: deps.withDefaults(), kind: domain.OpDeleteImage},
		target: target,
	}
}

func (o *DeleteImage) Kind() domain.OperationKind { return domain.OpDeleteImage }

func (o *DeleteImage) Apply(ctx context.Context, in, out string) Result {
	return o.run(ctx, in, out, func(doc domain.Document) (bool, string, error) {
		n, err := eachImage(doc, o.target, func(page int, ref domain.ImageRef) error {
			return doc.DeleteImage(page, ref)
		})
		if err != nil {
			return false, "", err
		}
		if n == 0 {
			return false, fmt.Sprintf("no image matches %s", o.target), nil
		}
		return true, fmt.Sprintf("deleted %d image(s)", n), nil
	})
}

// eachImage calls fn for every targeted image on every page. The page's image
// list is read once before fn runs so indices refer to the original order.
// Images inside a form XObject that an earlier page already had edited are
// not visited again.
func eachImage(doc domain.Document, target domain.ImageTarget, fn func(page int, ref domain.ImageRef) error) (int, error) {
	count := 0
	edited := map[int]bool{}
	for page := 0; page < doc.PageCount(); page++ {
		refs, err := doc.Images(page)
		if err != nil {
			return count, fmt.Errorf("page %d: %w", page+1, err)
		}
		var forms []int
		for _, ref := range refs {
			if !target.Selects(ref.Index) || edited[ref.Form] {
				continue
			}
			if err := fn(page, ref); err != nil {
				return count, fmt.Errorf("page %d image %d: %w", page+1, ref.Index, err)
			}
			if ref.Form != 0 {
				forms = append(forms, ref.Form)
			}
			count++
		}
		for _, f := range forms {
			edited[f] = true
		}
	}
	return count, nil
}
