package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/batch"
	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/pdf"
)

// runOptions are the command-line overrides of a job file.
type runOptions struct {
	inputs     []string
	outputDir  string
	workDir    string
	exportJPEG bool

	deleteText   string
	find         string
	replace      string
	replaceImage string
	deleteImage  bool
	imageIndex   string

	textboxText string
	textboxRect string
	textboxPage int
	areaRect    string
	areaPage    int
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [job.yaml]",
	Short: "Run a batch over one or more PDF documents",
	Long: `Run applies the enabled operations to every input document, in the fixed
order delete-text, replace-text, replace-image, delete-image, add-textbox,
delete-area, and writes <name>_modified.pdf into the output directory.

Operations come from the job file, from flags, or both; flags win.`,
	Example: `  redact-edge run job.yaml
  redact-edge run -i a.pdf -i b.pdf -o out --find "foo, Secret" --replace "bar, [redacted]"
  redact-edge run -i a.pdf -o out --area-rect 50,50,300,150 --area-page 1 --jpeg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVarP(&runOpts.inputs, "input", "i", nil, "input PDF (repeatable)")
	f.StringVarP(&runOpts.outputDir, "output-dir", "o", "", "output directory")
	f.StringVar(&runOpts.workDir, "work-dir", "", "directory for intermediate artifacts")
	f.BoolVar(&runOpts.exportJPEG, "jpeg", false, "also export every output page as JPEG")

	f.StringVar(&runOpts.deleteText, "delete-text", "", "comma-separated text to delete")
	f.StringVar(&runOpts.find, "find", "", "comma-separated text to replace")
	f.StringVar(&runOpts.replace, "replace", "", "comma-separated replacements, paired with --find")
	f.StringVar(&runOpts.replaceImage, "replace-image", "", "replacement image file")
	f.BoolVar(&runOpts.deleteImage, "delete-image", false, "delete images")
	f.StringVar(&runOpts.imageIndex, "image-index", "", `image index per page, blank or "all" for every image`)

	f.StringVar(&runOpts.textboxText, "textbox-text", "", "text to add")
	f.StringVar(&runOpts.textboxRect, "textbox-rect", "", "text box rect x0,y0,x1,y1 in points")
	f.IntVar(&runOpts.textboxPage, "textbox-page", 0, "zero-based text box page")
	f.StringVar(&runOpts.areaRect, "area-rect", "", "area rect x0,y0,x1,y1 in points to blank out")
	f.IntVar(&runOpts.areaPage, "area-page", 0, "zero-based area page")

	rootCmd.AddCommand(runCmd)
}

// applyTo merges the options into job. changed reports whether a flag was
// given on the command line.
func (o runOptions) applyTo(job *config.Job, changed func(string) bool) error {
	job.Inputs = append(job.Inputs, o.inputs...)
	if changed("output-dir") {
		job.OutputDir = o.outputDir
	}
	if changed("work-dir") {
		job.WorkDir = o.workDir
	}
	if changed("jpeg") {
		job.ExportJPEG = o.exportJPEG
	}

	ops := &job.Operations
	if changed("delete-text") {
		ops.DeleteText.Enabled = true
		ops.DeleteText.Find = config.SplitList(o.deleteText)
	}
	if changed("find") {
		job.Find = config.SplitList(o.find)
	}
	if changed("replace") {
		job.Replace = config.SplitList(o.replace)
		ops.ReplaceText.Enabled = true
	}
	if changed("image-index") {
		job.ImageIndex = o.imageIndex
		ops.ReplaceImage.ImageIndex = nil
		ops.DeleteImage.ImageIndex = nil
	}
	if changed("replace-image") {
		ops.ReplaceImage.Enabled = true
		ops.ReplaceImage.Image = o.replaceImage
	}
	if changed("delete-image") {
		ops.DeleteImage.Enabled = o.deleteImage
	}

	if changed("textbox-text") {
		ops.AddTextbox.Enabled = true
		ops.AddTextbox.Text = o.textboxText
	}
	if changed("textbox-rect") {
		rect, err := parseRect(o.textboxRect)
		if err != nil {
			return err
		}
		ops.AddTextbox.Rect = rect
	}
	if changed("textbox-page") {
		ops.AddTextbox.Page = o.textboxPage
	}
	if changed("area-rect") {
		rect, err := parseRect(o.areaRect)
		if err != nil {
			return err
		}
		ops.DeleteArea.Enabled = true
		ops.DeleteArea.Rect = rect
	}
	if changed("area-page") {
		ops.DeleteArea.Page = o.areaPage
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	job := &config.Job{}
	if len(args) == 1 {
		loaded, err := config.LoadJob(args[0])
		if err != nil {
			return err
		}
		job = loaded
	}
	if err := runOpts.applyTo(job, cmd.Flags().Changed); err != nil {
		return err
	}
	if job.WorkDir == "" {
		job.WorkDir = appCfg.Pipeline.WorkDir
	}

	cfg, err := job.Build(logger)
	if err != nil {
		return err
	}

	ui.Section("Batch")
	ui.KeyValue("Documents", fmt.Sprintf("%d", len(cfg.Inputs)))
	ui.KeyValue("Operations", describeKinds(cfg.EnabledKinds()))
	ui.KeyValue("Output", cfg.OutputDir)
	ui.Newline()
	if len(cfg.EnabledKinds()) == 0 {
		ui.Warning("No operations enabled, inputs will be copied unchanged")
	}

	preflight(cfg)

	j, err := openJournal()
	if err != nil {
		return err
	}
	opts := batch.Options{
		ExportDPI:   appCfg.Render.ExportDPI,
		JPEGQuality: appCfg.Render.JPEGQuality,
	}
	if j != nil {
		defer j.Close()
		opts.Sink = j
	}

	engine, raster := newEngines()
	runner := batch.NewRunner(engine, raster, logger, opts)

	ctx, cancel := signalContext("Interrupt received, stopping after the current document...")
	defer cancel()

	summary, err := runWithProgress(ctx, runner, cfg)
	if summary != nil {
		printSummary(summary, len(cfg.Inputs))
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("batch interrupted")
	}
	return err
}

// preflight warns about inputs that will fail before the batch starts.
func preflight(cfg domain.JobConfig) {
	sp := ui.NewSpinner("Checking inputs...")
	sp.Start()
	v := pdf.NewValidator(logger)
	var problems []string
	for _, in := range cfg.Inputs {
		sp.UpdateMessage("Checking " + filepath.Base(in) + "...")
		if err := v.ValidatePDFPath(in); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if cfg.IsEnabled(domain.OpReplaceImage) {
		if err := v.ValidateImagePath(cfg.ReplacementImage); err != nil {
			problems = append(problems, err.Error())
		}
	}
	sp.Stop()

	for _, p := range problems {
		ui.Warning("%s", p)
	}
}

func runWithProgress(ctx context.Context, runner *batch.Runner, cfg domain.JobConfig) (*domain.BatchSummary, error) {
	eventCh := make(chan domain.StreamEvent, 100)
	type result struct {
		summary *domain.BatchSummary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := runner.Run(ctx, cfg, eventCh)
		close(eventCh)
		done <- result{s, err}
	}()

	bar := ui.NewProgressBar(int64(len(cfg.Inputs)), "Processing")
	finished := 0
	for event := range eventCh {
		switch event.Type {
		case domain.EventDocumentStart:
			bar.Describe(filepath.Base(event.Document))
		case domain.EventStepApplied:
			ui.Step("%s: %s %v", filepath.Base(event.Document), event.Step, event.Payload)
		case domain.EventStepSkipped:
			ui.Step("%s: %s skipped, %v", filepath.Base(event.Document), event.Step, event.Payload)
		case domain.EventStepFailed:
			bar.Clear()
			ui.Warning("%s: %s failed: %v", filepath.Base(event.Document), event.Step, event.Payload)
		case domain.EventDocumentComplete, domain.EventDocumentFailed:
			finished++
			bar.Set(int64(finished))
			if event.Type == domain.EventDocumentFailed {
				bar.Clear()
				ui.Error("%s: %v", filepath.Base(event.Document), event.Payload)
			}
		case domain.EventExport:
			ui.Step("%s: %v", filepath.Base(event.Document), event.Payload)
		case domain.EventError:
			bar.Clear()
			ui.Error("%v", event.Payload)
		}
	}
	r := <-done
	if r.summary != nil {
		bar.Set(int64(r.summary.Processed + r.summary.Failed))
	}
	bar.Finish()
	return r.summary, r.err
}

func printSummary(s *domain.BatchSummary, total int) {
	var b strings.Builder
	fmt.Fprintf(&b, "Processed: %d of %d\n", s.Processed, total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, "Failed:    %d\n", s.Failed)
	}
	fmt.Fprintf(&b, "Duration:  %s\n", ui.FormatDuration(s.Duration()))
	fmt.Fprintf(&b, "Run:       %s\n", s.RunID)
	for _, d := range s.Documents {
		if d.Processed {
			fmt.Fprintf(&b, "  ✓ %s", filepath.Base(d.Output))
			if n := len(d.Exported); n > 0 {
				fmt.Fprintf(&b, " (+%d JPEG)", n)
			}
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "  ✗ %s\n", filepath.Base(d.Source))
		}
	}
	ui.Box("Summary", b.String())
}

func describeKinds(kinds []domain.OperationKind) string {
	if len(kinds) == 0 {
		return "none"
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}
