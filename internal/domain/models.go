package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// PixelRect is a rectangle in rendered-preview pixel units as produced by a
// drag gesture. Start and end corners may come in any order.
type PixelRect struct {
	X0, Y0, X1, Y1 float64
}

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (r PixelRect) Normalize() PixelRect {
	return PixelRect{
		X0: math.Min(r.X0, r.X1),
		Y0: math.Min(r.Y0, r.Y1),
		X1: math.Max(r.X0, r.X1),
		Y1: math.Max(r.Y0, r.Y1),
	}
}

// Width returns the absolute horizontal extent.
func (r PixelRect) Width() float64 { return math.Abs(r.X1 - r.X0) }

// Height returns the absolute vertical extent.
func (r PixelRect) Height() float64 { return math.Abs(r.Y1 - r.Y0) }

// DocumentRect is a rectangle in document points. The origin is the top-left
// corner of the page's visible box, y grows downwards, like the preview image.
type DocumentRect struct {
	X0, Y0, X1, Y1 float64
}

// Normalize orders the corners so that X0<=X1 and Y0<=Y1.
func (r DocumentRect) Normalize() DocumentRect {
	return DocumentRect{
		X0: math.Min(r.X0, r.X1),
		Y0: math.Min(r.Y0, r.Y1),
		X1: math.Max(r.X0, r.X1),
		Y1: math.Max(r.Y0, r.Y1),
	}
}

func (r DocumentRect) Width() float64  { return r.X1 - r.X0 }
func (r DocumentRect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether the rectangle has no area.
func (r DocumentRect) IsEmpty() bool {
	return r.X1 <= r.X0 || r.Y1 <= r.Y0
}

func (r DocumentRect) String() string {
	return fmt.Sprintf("(%.1f, %.1f) to (%.1f, %.1f)", r.X0, r.Y0, r.X1, r.Y1)
}

// Selection is a committed document-space rectangle plus the zero-based page
// it was captured on.
type Selection struct {
	Rect DocumentRect `json:"rect" yaml:"rect"`
	Page int          `json:"page" yaml:"page"`
}

// Selections holds the two selection slots. A nil slot is unset.
type Selections struct {
	Textbox *Selection `json:"textbox,omitempty"`
	Area    *Selection `json:"area,omitempty"`
}

// PageInfo describes one page of an opened document.
type PageInfo struct {
	Index    int
	Width    float64 // points, visible box, unrotated
	Height   float64 // points, visible box, unrotated
	Rotation int     // normalized to 0, 90, 180 or 270
}

// DisplaySize returns the page size as a viewer shows it, i.e. with the
// rotation applied.
func (p PageInfo) DisplaySize() (float64, float64) {
	if p.Rotation == 90 || p.Rotation == 270 {
		return p.Height, p.Width
	}
	return p.Width, p.Height
}

// OperationKind tags an entry of the fixed operation catalog.
type OperationKind int

const (
	OpDeleteText OperationKind = iota
	OpReplaceText
	OpReplaceImage
	OpDeleteImage
	OpAddTextbox
	OpDeleteArea

	operationKindCount
)

// PipelineOrder is the total order in which enabled operations run, regardless
// of the order they were enabled in.
var PipelineOrder = [operationKindCount]OperationKind{
	OpDeleteText,
	OpReplaceText,
	OpReplaceImage,
	OpDeleteImage,
	OpAddTextbox,
	OpDeleteArea,
}

var operationNames = [operationKindCount]string{
	OpDeleteText:   "delete-text",
	OpReplaceText:  "replace-text",
	OpReplaceImage: "replace-image",
	OpDeleteImage:  "delete-image",
	OpAddTextbox:   "add-textbox",
	OpDeleteArea:   "delete-area",
}

// artifact suffixes used to name intermediate files
var operationSuffixes = [operationKindCount]string{
	OpDeleteText:   "deltext",
	OpReplaceText:  "replacetext",
	OpReplaceImage: "replaceimg",
	OpDeleteImage:  "delimg",
	OpAddTextbox:   "addtextbox",
	OpDeleteArea:   "delarea",
}

func (k OperationKind) Valid() bool {
	return k >= 0 && k < operationKindCount
}

func (k OperationKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("operation(%d)", int(k))
	}
	return operationNames[k]
}

// Suffix returns the short tag used in intermediate artifact names.
func (k OperationKind) Suffix() string {
	if !k.Valid() {
		return "op"
	}
	return operationSuffixes[k]
}

// ParseOperationKind resolves a catalog name such as "replace-text".
// Underscores are accepted in place of dashes.
func ParseOperationKind(s string) (OperationKind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for k, n := range operationNames {
		if n == name {
			return OperationKind(k), nil
		}
	}
	return 0, ValidationError(fmt.Sprintf("unknown operation %q", s), nil)
}

// ImageTarget selects either one page-local image index or every image.
type ImageTarget struct {
	All   bool
	Index int
}

// AllImages targets every image on every page.
func AllImages() ImageTarget { return ImageTarget{All: true} }

// ImageAt targets the image at a page-local index.
func ImageAt(i int) ImageTarget { return ImageTarget{Index: i} }

// Selects reports whether the i-th image of a page is targeted.
func (t ImageTarget) Selects(i int) bool {
	return t.All || t.Index == i
}

func (t ImageTarget) String() string {
	if t.All {
		return "all"
	}
	return fmt.Sprintf("%d", t.Index)
}

// TextPair is one find/replace entry.
type TextPair struct {
	Find    string `json:"find" yaml:"find"`
	Replace string `json:"replace" yaml:"replace"`
}

// JobConfig is the immutable configuration of one batch run: enabled
// operations, their parameters and the selections captured beforehand.
// It is assembled once and passed by value.
type JobConfig struct {
	Inputs     []string
	OutputDir  string
	WorkDir    string
	ExportJPEG bool

	Enabled [operationKindCount]bool

	DeleteTexts      []string
	ReplacePairs     []TextPair
	Images           ImageTarget
	ReplacementImage string
	TextboxText      string
	Textbox          Selection
	Area             Selection
}

// Enable returns a copy of c with kind k switched on.
func (c JobConfig) Enable(k OperationKind) JobConfig {
	if k.Valid() {
		c.Enabled[k] = true
	}
	return c
}

// IsEnabled reports whether kind k is switched on.
func (c JobConfig) IsEnabled(k OperationKind) bool {
	return k.Valid() && c.Enabled[k]
}

// EnabledKinds lists the enabled kinds in pipeline order.
func (c JobConfig) EnabledKinds() []OperationKind {
	kinds := make([]OperationKind, 0, len(PipelineOrder))
	for _, k := range PipelineOrder {
		if c.Enabled[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// StepStatus is the outcome of one pipeline step.
type StepStatus string

const (
	StepApplied StepStatus = "applied"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepReport records what one operation did to a document.
type StepReport struct {
	Kind     OperationKind
	Status   StepStatus
	Input    string
	Artifact string
	Reason   string
	Err      error
	Duration time.Duration
}

// DocumentReport records the outcome of one source document.
type DocumentReport struct {
	Source    string
	Output    string
	Processed bool
	Steps     []StepReport
	Exported  []string
	Err       error
}

// BatchSummary aggregates a whole run.
type BatchSummary struct {
	RunID       string
	Processed   int
	Failed      int
	Documents   []DocumentReport
	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration returns the wall time of the run.
func (s *BatchSummary) Duration() time.Duration {
	return s.CompletedAt.Sub(s.StartedAt)
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart            EventType = "start"
	EventDocumentStart    EventType = "document_start"
	EventStepApplied      EventType = "step_applied"
	EventStepSkipped      EventType = "step_skipped"
	EventStepFailed       EventType = "step_failed"
	EventDocumentComplete EventType = "document_complete"
	EventDocumentFailed   EventType = "document_failed"
	EventExport           EventType = "export"
	EventError            EventType = "error"
	EventComplete         EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id,omitempty"`
	Document  string      `json:"document,omitempty"`
	Step      string      `json:"step,omitempty"`
	Index     int         `json:"index,omitempty"` // 1-based position of the document in the batch
	Total     int         `json:"total,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // status message or error text
	Timestamp time.Time   `json:"timestamp"`
}
