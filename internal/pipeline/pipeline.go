// Package pipeline chains the enabled operations over one document and
// promotes the last artifact to the output directory.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/ops"
)

// Plan orders a set of bound operations by the fixed pipeline order.
func Plan(set map[domain.OperationKind]ops.Operation) []ops.Operation {
	plan := make([]ops.Operation, 0, len(set))
	for _, k := range domain.PipelineOrder {
		if op, ok := set[k]; ok {
			plan = append(plan, op)
		}
	}
	return plan
}

// Job is one document run.
type Job struct {
	Source    string
	OutputDir string
	Plan      []ops.Operation
	// OnStep is called after every step, in order.
	OnStep func(domain.StepReport)
}

// Outcome describes what happened to one document.
type Outcome struct {
	Source  string
	Output  string
	Steps   []domain.StepReport
	Applied int
	Removed int
}

// Pipeline runs plans. Intermediate artifacts are written to its work dir.
type Pipeline struct {
	workDir string
	logger  *observability.Logger
}

// New creates a pipeline. An empty workDir selects the system temp dir.
func New(workDir string, logger *observability.Logger) *Pipeline {
	if workDir == "" {
		workDir = os.TempDir()
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Pipeline{workDir: workDir, logger: logger.WithComponent("pipeline")}
}

// WorkDir returns where intermediates are written.
func (p *Pipeline) WorkDir() string { return p.workDir }

// Run applies job.Plan in order. Steps that fail or skip leave the tail where
// it was. The returned error is only set when the output could not be
// produced; intermediates are removed either way and the source is never
// touched.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Outcome, error) {
	logger := p.logger.WithDocument(job.Source)
	outcome := &Outcome{Source: job.Source}

	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return outcome, domain.IOError("cannot create work directory", err)
	}
	chain, err := NewChain(job.Source, p.workDir)
	if err != nil {
		return outcome, err
	}

	for _, op := range job.Plan {
		kind := op.Kind()
		out := chain.NextPath(kind)
		in := chain.Tail()

		start := time.Now()
		res := op.Apply(ctx, in, out)
		report := domain.StepReport{
			Kind:     kind,
			Status:   res.Status,
			Input:    in,
			Reason:   res.Reason,
			Err:      res.Err,
			Duration: time.Since(start),
		}

		switch res.Status {
		case domain.StepApplied:
			chain.Advance(out)
			report.Artifact = out
			outcome.Applied++
			logger.Info().Str("operation", kind.String()).Str("artifact", out).Dur("took", report.Duration).Msg("Step applied")
		case domain.StepSkipped:
			logger.Info().Str("operation", kind.String()).Str("reason", res.Reason).Msg("Step skipped")
		default:
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("artifact", out).Msg("Failed to remove partial artifact")
			}
			logger.Error().Err(res.Err).Str("operation", kind.String()).Msg("Step failed, continuing with previous artifact")
		}

		outcome.Steps = append(outcome.Steps, report)
		if job.OnStep != nil {
			job.OnStep(report)
		}
	}

	dst := OutputPath(job.Source, job.OutputDir)
	promoteErr := chain.Promote(dst)

	removed, cleanupErr := chain.Cleanup()
	outcome.Removed = removed
	if cleanupErr != nil {
		logger.Warn().Err(cleanupErr).Msg("Cleanup incomplete")
	}

	if promoteErr != nil {
		logger.Error().Err(promoteErr).Str("output", dst).Msg("Failed to write output")
		return outcome, promoteErr
	}
	outcome.Output = dst
	logger.Info().
		Str("output", dst).
		Int("applied", outcome.Applied).
		Int("steps", len(job.Plan)).
		Int("removed", removed).
		Msg("Document complete")
	return outcome, nil
}
