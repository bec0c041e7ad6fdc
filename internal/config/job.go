package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

// StringList decodes either a YAML sequence or one comma-separated string.
// Entries are trimmed and empty entries dropped.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = SplitList(value.Value)
		return nil
	case yaml.SequenceNode:
		var raw []string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*l = trimAll(raw)
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list", value.Line)
}

// SplitList splits a comma-separated entry field.
func SplitList(s string) []string {
	return trimAll(strings.Split(s, ","))
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ParseImageTarget reads an image index field: digits select that index,
// anything else selects every image.
func ParseImageTarget(s string) domain.ImageTarget {
	s = strings.TrimSpace(s)
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return domain.AllImages()
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return domain.AllImages()
	}
	return domain.ImageAt(n)
}

// Rect is [x0, y0, x1, y1] in document points, origin top-left.
type Rect []float64

// SelectionSpec is a page plus rectangle.
type SelectionSpec struct {
	Page int  `yaml:"page"`
	Rect Rect `yaml:"rect"`
}

func (s *SelectionSpec) selection() (domain.Selection, error) {
	if s == nil || len(s.Rect) == 0 {
		return domain.Selection{}, fmt.Errorf("no selection")
	}
	if len(s.Rect) != 4 {
		return domain.Selection{}, fmt.Errorf("rect needs 4 numbers, got %d", len(s.Rect))
	}
	r := domain.DocumentRect{X0: s.Rect[0], Y0: s.Rect[1], X1: s.Rect[2], Y1: s.Rect[3]}.Normalize()
	if r.X0 < 0 || r.Y0 < 0 {
		return domain.Selection{}, fmt.Errorf("rect %s has negative coordinates", r)
	}
	return domain.Selection{Rect: r, Page: s.Page}, nil
}

// OperationSpec is one operations entry of a job file.
type OperationSpec struct {
	Enabled bool `yaml:"enabled"`

	Find    StringList `yaml:"find,omitempty"`
	Replace StringList `yaml:"replace,omitempty"`

	Image      string  `yaml:"image,omitempty"`
	ImageIndex *string `yaml:"image_index,omitempty"`

	Text string `yaml:"text,omitempty"`

	SelectionSpec `yaml:",inline"`
}

// Operations lists the catalog entries of a job file.
type Operations struct {
	DeleteText   OperationSpec `yaml:"delete_text"`
	ReplaceText  OperationSpec `yaml:"replace_text"`
	ReplaceImage OperationSpec `yaml:"replace_image"`
	DeleteImage  OperationSpec `yaml:"delete_image"`
	AddTextbox   OperationSpec `yaml:"add_textbox"`
	DeleteArea   OperationSpec `yaml:"delete_area"`
}

// Job is a job file. Find, Replace and ImageIndex at the top level are shared
// by the operations that do not set their own.
type Job struct {
	Inputs     []string `yaml:"inputs"`
	OutputDir  string   `yaml:"output_dir"`
	WorkDir    string   `yaml:"work_dir,omitempty"`
	ExportJPEG bool     `yaml:"export_jpeg"`

	Find       StringList `yaml:"find,omitempty"`
	Replace    StringList `yaml:"replace,omitempty"`
	ImageIndex string     `yaml:"image_index,omitempty"`

	Operations Operations `yaml:"operations"`
}

// LoadJob reads a job file. Relative paths inside it are resolved against the
// job file's directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ConfigError("read job file", err)
	}
	job, err := ParseJob(data)
	if err != nil {
		return nil, err
	}
	job.resolve(filepath.Dir(path))
	return job, nil
}

// ParseJob decodes a job document.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, domain.ConfigError("parse job file", err)
	}
	return &job, nil
}

func (j *Job) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, in := range j.Inputs {
		j.Inputs[i] = abs(in)
	}
	j.OutputDir = abs(j.OutputDir)
	j.WorkDir = abs(j.WorkDir)
	j.Operations.ReplaceImage.Image = abs(j.Operations.ReplaceImage.Image)
}

// Enabled lists the enabled kinds in pipeline order.
func (j *Job) Enabled() []domain.OperationKind {
	var kinds []domain.OperationKind
	for _, k := range domain.PipelineOrder {
		if j.spec(k).Enabled {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Enable switches kind k on.
func (j *Job) Enable(k domain.OperationKind) {
	if s := j.spec(k); s != nil {
		s.Enabled = true
	}
}

func (j *Job) spec(k domain.OperationKind) *OperationSpec {
	switch k {
	case domain.OpDeleteText:
		return &j.Operations.DeleteText
	case domain.OpReplaceText:
		return &j.Operations.ReplaceText
	case domain.OpReplaceImage:
		return &j.Operations.ReplaceImage
	case domain.OpDeleteImage:
		return &j.Operations.DeleteImage
	case domain.OpAddTextbox:
		return &j.Operations.AddTextbox
	case domain.OpDeleteArea:
		return &j.Operations.DeleteArea
	}
	return &OperationSpec{}
}

func (j *Job) find(s *OperationSpec) []string {
	if len(s.Find) > 0 {
		return s.Find
	}
	return j.Find
}

func (j *Job) imageTarget(s *OperationSpec) domain.ImageTarget {
	if s.ImageIndex != nil {
		return ParseImageTarget(*s.ImageIndex)
	}
	return ParseImageTarget(j.ImageIndex)
}

// Build checks that every enabled operation has what it needs and returns
// the immutable run configuration.
func (j *Job) Build(logger *observability.Logger) (domain.JobConfig, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	var cfg domain.JobConfig
	var problems []string

	if len(j.Inputs) == 0 {
		problems = append(problems, "no input documents")
	}
	if strings.TrimSpace(j.OutputDir) == "" {
		problems = append(problems, "no output directory")
	}
	cfg.Inputs = append([]string(nil), j.Inputs...)
	cfg.OutputDir = j.OutputDir
	cfg.WorkDir = j.WorkDir
	cfg.ExportJPEG = j.ExportJPEG

	if s := &j.Operations.DeleteText; s.Enabled {
		cfg.DeleteTexts = j.find(s)
		if len(cfg.DeleteTexts) == 0 {
			problems = append(problems, "delete-text needs text to find")
		}
		cfg = cfg.Enable(domain.OpDeleteText)
	}

	if s := &j.Operations.ReplaceText; s.Enabled {
		finds := j.find(s)
		repls := s.Replace
		if len(repls) == 0 {
			repls = j.Replace
		}
		if len(finds) == 0 || len(repls) == 0 {
			problems = append(problems, "replace-text needs both find and replace text")
		}
		cfg.ReplacePairs = Pairs(finds, repls)
		if len(finds) != len(repls) {
			logger.Warn().
				Int("find", len(finds)).
				Int("replace", len(repls)).
				Int("pairs", len(cfg.ReplacePairs)).
				Msg("Find and replace lists differ in length, extra entries ignored")
		}
		cfg = cfg.Enable(domain.OpReplaceText)
	}

	if s := &j.Operations.ReplaceImage; s.Enabled {
		cfg.ReplacementImage = s.Image
		cfg.Images = j.imageTarget(s)
		if s.Image == "" {
			problems = append(problems, "replace-image needs a replacement image")
		}
		cfg = cfg.Enable(domain.OpReplaceImage)
	}

	if s := &j.Operations.DeleteImage; s.Enabled {
		target := j.imageTarget(s)
		if cfg.IsEnabled(domain.OpReplaceImage) && target != cfg.Images {
			problems = append(problems, "replace-image and delete-image must target the same images")
		}
		cfg.Images = target
		cfg = cfg.Enable(domain.OpDeleteImage)
	}

	if s := &j.Operations.AddTextbox; s.Enabled {
		cfg.TextboxText = strings.TrimSpace(s.Text)
		if cfg.TextboxText == "" {
			problems = append(problems, "add-textbox needs text")
		}
		sel, err := s.SelectionSpec.selection()
		if err != nil {
			problems = append(problems, "add-textbox: "+err.Error())
		}
		cfg.Textbox = sel
		cfg = cfg.Enable(domain.OpAddTextbox)
	}

	if s := &j.Operations.DeleteArea; s.Enabled {
		sel, err := s.SelectionSpec.selection()
		if err != nil {
			problems = append(problems, "delete-area: "+err.Error())
		}
		cfg.Area = sel
		cfg = cfg.Enable(domain.OpDeleteArea)
	}

	if len(problems) > 0 {
		return domain.JobConfig{}, domain.ConfigError("job is not ready: "+strings.Join(problems, "; "), nil)
	}
	return cfg, nil
}

// Pairs zips finds and replacements, dropping the unmatched tail.
func Pairs(finds, replacements []string) []domain.TextPair {
	n := len(finds)
	if len(replacements) < n {
		n = len(replacements)
	}
	pairs := make([]domain.TextPair, n)
	for i := 0; i < n; i++ {
		pairs[i] = domain.TextPair{Find: finds[i], Replace: replacements[i]}
	}
	return pairs
}

// WithSelections copies captured selections into the job, enabling nothing.
func (j *Job) WithSelections(sel domain.Selections) {
	if sel.Textbox != nil {
		j.Operations.AddTextbox.SelectionSpec = specFrom(*sel.Textbox)
	}
	if sel.Area != nil {
		j.Operations.DeleteArea.SelectionSpec = specFrom(*sel.Area)
	}
}

func specFrom(s domain.Selection) SelectionSpec {
	return SelectionSpec{Page: s.Page, Rect: Rect{s.Rect.X0, s.Rect.Y0, s.Rect.X1, s.Rect.Y1}}
}
