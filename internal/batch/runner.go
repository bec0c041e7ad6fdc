// Package batch runs a job configuration over every input document.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/ops"
	"github.com/spherical/redact-edge/internal/pdf"
	"github.com/spherical/redact-edge/internal/pipeline"
)

const (
	DefaultExportDPI   = 200.0
	DefaultJPEGQuality = 90
)

// Options tune a Runner.
type Options struct {
	ExportDPI   float64
	JPEGQuality int
	// Sink receives every event in addition to the event channel.
	Sink      domain.EventSink
	LoadImage ops.ImageLoader
}

// Runner processes documents strictly one after another.
type Runner struct {
	engine     domain.Engine
	rasterizer domain.Rasterizer
	validator  *pdf.Validator
	opts       Options
	logger     *observability.Logger
}

// NewRunner creates a runner.
func NewRunner(engine domain.Engine, rasterizer domain.Rasterizer, logger *observability.Logger, opts Options) *Runner {
	if logger == nil {
		logger = observability.Nop()
	}
	if opts.ExportDPI <= 0 {
		opts.ExportDPI = DefaultExportDPI
	}
	if opts.JPEGQuality <= 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return &Runner{
		engine:     engine,
		rasterizer: rasterizer,
		validator:  pdf.NewValidator(logger),
		opts:       opts,
		logger:     logger.WithComponent("batch"),
	}
}

// Run processes every input of cfg. Document failures are recorded in the
// summary and never stop the batch; only cancellation between documents does.
func (r *Runner) Run(ctx context.Context, cfg domain.JobConfig, eventCh chan<- domain.StreamEvent) (*domain.BatchSummary, error) {
	summary := &domain.BatchSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	ctx = observability.ContextWithRunID(ctx, summary.RunID)
	logger := r.logger.WithContext(ctx)
	em := &emitter{ch: eventCh, sink: r.opts.Sink, runID: summary.RunID, logger: logger}

	if strings.TrimSpace(cfg.OutputDir) == "" {
		err := domain.ConfigError("output directory is required", nil)
		em.error(ctx, "", err)
		return summary, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		err = domain.IOError("cannot create output directory", err)
		em.error(ctx, "", err)
		return summary, err
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		dir, err := os.MkdirTemp("", "redact-edge-*")
		if err != nil {
			return summary, domain.IOError("cannot create work directory", err)
		}
		defer os.RemoveAll(dir)
		workDir = dir
	}
	pipe := pipeline.New(workDir, logger)
	plan := pipeline.Plan(ops.FromJob(cfg, ops.Deps{
		Engine:    r.engine,
		LoadImage: r.opts.LoadImage,
		Logger:    logger,
	}))

	total := len(cfg.Inputs)
	kinds := make([]string, len(plan))
	for i, op := range plan {
		kinds[i] = op.Kind().String()
	}
	em.emit(ctx, domain.StreamEvent{
		Type:    domain.EventStart,
		Total:   total,
		Payload: fmt.Sprintf("Processing %d document(s) with %s", total, describePlan(kinds)),
	})
	logger.Info().Int("documents", total).Strs("operations", kinds).Msg("Batch started")

	var runErr error
	for i, source := range cfg.Inputs {
		if err := ctx.Err(); err != nil {
			runErr = err
			em.error(ctx, "", err)
			break
		}

		report := r.processDocument(ctx, pipe, plan, cfg, source, i+1, total, em)
		if report.Processed {
			summary.Processed++
		} else {
			summary.Failed++
		}
		summary.Documents = append(summary.Documents, report)
	}

	summary.CompletedAt = time.Now()
	em.emit(ctx, domain.StreamEvent{
		Type:  domain.EventComplete,
		Total: total,
		Payload: fmt.Sprintf("Batch complete: %d/%d document(s) processed in %v",
			summary.Processed, total, summary.Duration().Round(time.Millisecond)),
	})
	logger.Info().
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Dur("took", summary.Duration()).
		Msg("Batch complete")
	return summary, runErr
}

func (r *Runner) processDocument(ctx context.Context, pipe *pipeline.Pipeline, plan []ops.Operation,
	cfg domain.JobConfig, source string, index, total int, em *emitter) domain.DocumentReport {

	report := domain.DocumentReport{Source: source}
	logger := r.logger.WithContext(ctx).WithDocument(source)
	em.emit(ctx, domain.StreamEvent{
		Type:     domain.EventDocumentStart,
		Document: source,
		Index:    index,
		Total:    total,
		Payload:  fmt.Sprintf("Processing %s", filepath.Base(source)),
	})

	if err := r.preflight(ctx, source); err != nil {
		logger.Error().Err(err).Msg("Document rejected")
		report.Err = err
		em.emit(ctx, domain.StreamEvent{
			Type: domain.EventDocumentFailed, Document: source, Index: index, Total: total, Payload: err.Error(),
		})
		return report
	}

	outcome, err := pipe.Run(ctx, pipeline.Job{
		Source:    source,
		OutputDir: cfg.OutputDir,
		Plan:      plan,
		OnStep: func(step domain.StepReport) {
			em.emit(ctx, domain.StreamEvent{
				Type:     stepEvent(step.Status),
				Document: source,
				Step:     step.Kind.String(),
				Index:    index,
				Total:    total,
				Payload:  step.Reason,
			})
		},
	})
	report.Steps = outcome.Steps
	if err != nil {
		report.Err = err
		em.emit(ctx, domain.StreamEvent{
			Type: domain.EventDocumentFailed, Document: source, Index: index, Total: total, Payload: err.Error(),
		})
		return report
	}
	report.Output = outcome.Output
	report.Processed = true
	em.emit(ctx, domain.StreamEvent{
		Type:     domain.EventDocumentComplete,
		Document: source,
		Index:    index,
		Total:    total,
		Payload:  fmt.Sprintf("%s written (%d/%d step(s) applied)", filepath.Base(outcome.Output), outcome.Applied, len(plan)),
	})

	if cfg.ExportJPEG {
		report.Exported = r.export(ctx, outcome.Output, cfg.OutputDir, index, total, em)
	}
	return report
}

// preflight rejects sources that cannot be processed at all.
func (r *Runner) preflight(ctx context.Context, source string) error {
	if err := r.validator.ValidatePDFPath(source); err != nil {
		return err
	}
	doc, err := r.engine.Open(ctx, source)
	if err != nil {
		return err
	}
	defer doc.Close()
	if doc.PageCount() == 0 {
		return domain.DocumentError(filepath.Base(source)+" has no pages", nil)
	}
	return nil
}

// export writes JPEG snapshots of output. Failures are logged and reported
// but never affect the document outcome.
func (r *Runner) export(ctx context.Context, output, dir string, index, total int, em *emitter) []string {
	base := filepath.Base(output)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	logger := r.logger.WithContext(ctx).WithDocument(output)

	written, err := r.rasterizer.ExportJPEG(ctx, output, dir, stem, r.opts.ExportDPI, r.opts.JPEGQuality)
	if err != nil {
		logger.Error().Err(err).Int("written", len(written)).Msg("JPEG export failed")
		em.error(ctx, output, domain.ExportError("jpeg export of "+base, err))
		return written
	}
	logger.Info().Msgf("Saved %d JPEG(s)", len(written))
	em.emit(ctx, domain.StreamEvent{
		Type:     domain.EventExport,
		Document: output,
		Index:    index,
		Total:    total,
		Payload:  fmt.Sprintf("Saved %d JPEG(s)", len(written)),
	})
	return written
}

func stepEvent(status domain.StepStatus) domain.EventType {
	switch status {
	case domain.StepApplied:
		return domain.EventStepApplied
	case domain.StepSkipped:
		return domain.EventStepSkipped
	default:
		return domain.EventStepFailed
	}
}

func describePlan(kinds []string) string {
	if len(kinds) == 0 {
		return "no operations"
	}
	return strings.Join(kinds, " -> ")
}

// emitter fans events out to the optional channel and sink. Channel sends
// wait for the reader unless the run is cancelled.
type emitter struct {
	ch     chan<- domain.StreamEvent
	sink   domain.EventSink
	runID  string
	logger *observability.Logger
}

func (e *emitter) emit(ctx context.Context, event domain.StreamEvent) {
	event.RunID = e.runID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if e.sink != nil {
		// a cancelled run still records how it ended
		if err := e.sink.Record(context.WithoutCancel(ctx), event); err != nil {
			e.logger.Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to record event")
		}
	}
	if e.ch == nil {
		return
	}
	select {
	case e.ch <- event:
		return
	default:
	}
	select {
	case e.ch <- event:
	case <-ctx.Done():
		e.logger.Warn().Str("event", string(event.Type)).Msg("Run cancelled with the event channel full, dropping event")
	}
}

func (e *emitter) error(ctx context.Context, document string, err error) {
	e.emit(ctx, domain.StreamEvent{
		Type:     domain.EventError,
		Document: document,
		Payload:  err.Error(),
	})
}
