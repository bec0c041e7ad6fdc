// Package redactor is the library entry point for running redaction batches.
package redactor

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/spherical/redact-edge/internal/batch"
	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/journal"
	"github.com/spherical/redact-edge/internal/observability"
	"github.com/spherical/redact-edge/internal/pdf"
)

// Re-export domain types for the public API
type (
	StreamEvent   = domain.StreamEvent
	EventType     = domain.EventType
	JobConfig     = domain.JobConfig
	BatchSummary  = domain.BatchSummary
	OperationKind = domain.OperationKind
	Selection     = domain.Selection
	DocumentRect  = domain.DocumentRect
	TextPair      = domain.TextPair
	ImageTarget   = domain.ImageTarget
)

// Event type constants
const (
	EventStart            = domain.EventStart
	EventDocumentStart    = domain.EventDocumentStart
	EventStepApplied      = domain.EventStepApplied
	EventStepSkipped      = domain.EventStepSkipped
	EventStepFailed       = domain.EventStepFailed
	EventDocumentComplete = domain.EventDocumentComplete
	EventDocumentFailed   = domain.EventDocumentFailed
	EventExport           = domain.EventExport
	EventError            = domain.EventError
	EventComplete         = domain.EventComplete
)

// Operation kinds, in pipeline order
const (
	DeleteText   = domain.OpDeleteText
	ReplaceText  = domain.OpReplaceText
	ReplaceImage = domain.OpReplaceImage
	DeleteImage  = domain.OpDeleteImage
	AddTextbox   = domain.OpAddTextbox
	DeleteArea   = domain.OpDeleteArea
)

// AllImages targets every image on a page.
func AllImages() ImageTarget { return domain.AllImages() }

// ImageAt targets the i-th image of each page.
func ImageAt(i int) ImageTarget { return domain.ImageAt(i) }

// Client runs batches.
type Client struct {
	runner  *batch.Runner
	journal *journal.Journal
}

// Config holds configuration options for the client
type Config struct {
	ExportDPI   float64 // JPEG export resolution, default 200
	JPEGQuality int     // default 90
	JournalPath string  // optional SQLite run journal
	LogLevel    string  // zerolog level, default disabled
}

// NewClient creates a client from the environment: REDACT_EDGE_CONFIG names an
// optional config file, .env is honoured.
func NewClient() (*Client, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("REDACT_EDGE_CONFIG"))
	if err != nil {
		return nil, domain.ConfigError("load config", err)
	}
	c := &Config{
		ExportDPI:   cfg.Render.ExportDPI,
		JPEGQuality: cfg.Render.JPEGQuality,
		LogLevel:    cfg.Observability.LogLevel,
	}
	if cfg.Journal.Enabled {
		c.JournalPath = cfg.Journal.Path
	}
	return NewClientWithConfig(c)
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := observability.Nop()
	if cfg.LogLevel != "" {
		logger = observability.NewLogger(observability.LogConfig{Level: cfg.LogLevel, Format: "json"})
	}

	opts := batch.Options{ExportDPI: cfg.ExportDPI, JPEGQuality: cfg.JPEGQuality}
	v := pdf.NewValidator(logger)
	if cfg.ExportDPI != 0 {
		if err := v.ValidateDPI(cfg.ExportDPI); err != nil {
			return nil, err
		}
	}
	if cfg.JPEGQuality != 0 {
		if err := v.ValidateQuality(cfg.JPEGQuality); err != nil {
			return nil, err
		}
	}

	c := &Client{}
	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath, logger)
		if err != nil {
			return nil, err
		}
		c.journal = j
		opts.Sink = j
	}
	c.runner = batch.NewRunner(pdf.NewEngine(logger), pdf.NewRasterizer(logger), logger, opts)
	return c, nil
}

// LoadJob reads a job file into a validated configuration.
func LoadJob(path string) (JobConfig, error) {
	job, err := config.LoadJob(path)
	if err != nil {
		return JobConfig{}, err
	}
	return job.Build(nil)
}

// Run processes the batch and returns its summary.
func (c *Client) Run(ctx context.Context, cfg JobConfig) (*BatchSummary, error) {
	return c.runner.Run(ctx, cfg, nil)
}

// Process runs the batch in the background.
// Returns a channel that streams events as the batch progresses
func (c *Client) Process(ctx context.Context, cfg JobConfig) (<-chan StreamEvent, error) {
	if len(cfg.Inputs) == 0 {
		return nil, domain.ValidationError("no input documents", nil)
	}
	if cfg.OutputDir == "" {
		return nil, domain.ValidationError("output directory is required", nil)
	}

	eventCh := make(chan StreamEvent, 100)
	go func() {
		defer close(eventCh)
		if _, err := c.runner.Run(ctx, cfg, eventCh); err != nil {
			eventCh <- StreamEvent{
				Type:    EventError,
				Payload: err.Error(),
			}
		}
	}()
	return eventCh, nil
}

// Close releases the journal.
func (c *Client) Close() error {
	if c.journal != nil {
		return c.journal.Close()
	}
	return nil
}
