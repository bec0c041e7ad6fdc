// Package ops implements the document edits a pipeline can chain. Every
// operation reads one artifact and, when it has something to do, writes a
// new one. The input is never modified.
package ops

import (
	"context"
	"fmt"
	"image"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/pdf"
)

// Result is the tagged outcome of one Apply call.
type Result struct {
	Status domain.StepStatus
	Reason string
	Err    error
}

// Applied means out was written.
func Applied(format string, args ...interface{}) Result {
	return Result{Status: domain.StepApplied, Reason: fmt.Sprintf(format, args...)}
}

// Skipped means there was nothing to do and out was not written.
func Skipped(format string, args ...interface{}) Result {
	return Result{Status: domain.StepSkipped, Reason: fmt.Sprintf(format, args...)}
}

// Failed means the operation could not complete. out may hold a partial file.
func Failed(err error) Result {
	return Result{Status: domain.StepFailed, Reason: err.Error(), Err: err}
}

func (r Result) IsApplied() bool { return r.Status == domain.StepApplied }

func (r Result) String() string {
	if r.Reason == "" {
		return string(r.Status)
	}
	return fmt.Sprintf("%s: %s", r.Status, r.Reason)
}

// Operation is one catalog entry bound to its parameters.
type Operation interface {
	Kind() domain.OperationKind
	Apply(ctx context.Context, in, out string) Result
}

// ImageLoader decodes a replacement image from disk.
type ImageLoader func(path string) (image.Image, error)

// Deps are the collaborators shared by all operations.
type Deps struct {
	Engine    domain.Engine
	LoadImage ImageLoader
	Logger    *observability.Logger
}

func (d Deps) withDefaults() Deps {
	if d.LoadImage == nil {
		d.LoadImage = pdf.LoadImage
	}
	if d.Logger == nil {
		d.Logger = observability.Nop()
	}
	return d
}

// FromJob binds every enabled operation of cfg to its parameters. The map is
// keyed by kind; ordering is the pipeline's job.
func FromJob(cfg domain.JobConfig, deps Deps) map[domain.OperationKind]Operation {
	deps = deps.withDefaults()
	out := make(map[domain.OperationKind]Operation)
	for _, k := range cfg.EnabledKinds() {
		switch k {
		case domain.OpDeleteText:
			out[k] = NewDeleteText(deps, cfg.DeleteTexts)
		case domain.OpReplaceText:
			out[k] = NewReplaceText(deps, cfg.ReplacePairs)
		case domain.OpReplaceImage:
			out[k] = NewReplaceImage(deps, cfg.ReplacementImage, cfg.Images)
		case domain.OpDeleteImage:
			out[k] = NewDeleteImage(deps, cfg.Images)
		case domain.OpAddTextbox:
			out[k] = NewAddTextbox(deps, cfg.TextboxText, cfg.Textbox)
		case domain.OpDeleteArea:
			out[k] = NewDeleteArea(deps, cfg.Area)
		}
	}
	return out
}

// edit is the shared open, mutate, save sequence. mutate returns whether the
// document changed and a short description of what happened.
type edit struct {
	deps     Deps
	kind     domain.OperationKind
	strip    bool
	optimize bool
}

func (e edit) run(ctx context.Context, in, out string, mutate func(doc domain.Document) (bool, string, error)) Result {
	logger := e.deps.Logger.WithOperation(e.kind.String())

	doc, err := e.deps.Engine.Open(ctx, in)
	if err != nil {
		return Failed(err)
	}
	defer doc.Close()

	changed, what, err := mutate(doc)
	if err != nil {
		return Failed(domain.OperationError(e.kind.String(), err))
	}
	if !changed {
		logger.Debug().Str("reason", what).Msg("Nothing to do")
		return Skipped("%s", what)
	}

	if e.strip {
		if err := doc.StripMarkers(); err != nil {
			return Failed(domain.OperationError(e.kind.String()+": strip markers", err))
		}
	}
	if err := doc.Save(out, domain.SaveOptions{Optimize: e.optimize}); err != nil {
		return Failed(domain.IOError(e.kind.String()+": save", err))
	}
	logger.Info().Str("result", what).Msg("Operation applied")
	return Applied("%s", what)
}

// clampPage resolves an out of range selection page to the first page.
func clampPage(doc domain.Document, page int, logger *observability.Logger) int {
	if page >= 0 && page < doc.PageCount() {
		return page
	}
	logger.Warn().Int("page", page+1).Int("count", doc.PageCount()).Msg("Selection page out of range, using page 1")
	return 0
}
