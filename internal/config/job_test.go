package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
)

const fullJob = `
inputs: [a.pdf, /abs/b.pdf]
output_dir: out
export_jpeg: true
find: " foo , , Secret "
replace: bar
image_index: "1"
operations:
  delete_text:
    enabled: true
    find: [classified]
  replace_text:
    enabled: true
  replace_image:
    enabled: true
    image: logo.png
  delete_image:
    enabled: false
  add_textbox:
    enabled: true
    text: "  Confidential  "
    page: 0
    rect: [300, 120, 72, 72]
  delete_area:
    enabled: true
    page: 1
    rect: [50, 50, 300, 150]
`

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullJob), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), "/abs/b.pdf"}, job.Inputs)
	assert.Equal(t, filepath.Join(dir, "out"), job.OutputDir)
	assert.Equal(t, StringList{"foo", "Secret"}, job.Find)

	cfg, err := job.Build(nil)
	require.NoError(t, err)

	assert.Equal(t, []domain.OperationKind{
		domain.OpDeleteText, domain.OpReplaceText, domain.OpReplaceImage, domain.OpAddTextbox, domain.OpDeleteArea,
	}, cfg.EnabledKinds())
	assert.Equal(t, []string{"classified"}, cfg.DeleteTexts)
	assert.Equal(t, []domain.TextPair{{Find: "foo", Replace: "bar"}}, cfg.ReplacePairs)
	assert.Equal(t, filepath.Join(dir, "logo.png"), cfg.ReplacementImage)
	assert.Equal(t, domain.ImageAt(1), cfg.Images)
	assert.Equal(t, "Confidential", cfg.TextboxText)
	assert.Equal(t, domain.DocumentRect{X0: 72, Y0: 72, X1: 300, Y1: 120}, cfg.Textbox.Rect)
	assert.Equal(t, 1, cfg.Area.Page)
	assert.True(t, cfg.ExportJPEG)
}

func TestJobBuild_Readiness(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no inputs", "output_dir: out", "no input documents"},
		{"no output", "inputs: [a.pdf]", "no output directory"},
		{"delete text without find", base + "operations: {delete_text: {enabled: true}}", "delete-text needs text"},
		{"replace without replacement", base + "find: foo\noperations: {replace_text: {enabled: true}}", "needs both find and replace"},
		{"replace image without image", base + "operations: {replace_image: {enabled: true}}", "replacement image"},
		{"textbox without text", base + "operations: {add_textbox: {enabled: true, rect: [1,1,9,9]}}", "add-textbox needs text"},
		{"textbox without rect", base + "operations: {add_textbox: {enabled: true, text: hi}}", "add-textbox: no selection"},
		{"area with short rect", base + "operations: {delete_area: {enabled: true, rect: [1,2,3]}}", "rect needs 4 numbers"},
		{"area negative", base + "operations: {delete_area: {enabled: true, rect: [-1,2,3,4]}}", "negative"},
		{
			"conflicting image targets",
			base + "operations: {replace_image: {enabled: true, image: x.png, image_index: '0'}, delete_image: {enabled: true, image_index: all}}",
			"same images",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := ParseJob([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = job.Build(nil)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

const base = "inputs: [a.pdf]\noutput_dir: out\n"

func TestJobBuild_NothingEnabled(t *testing.T) {
	job, err := ParseJob([]byte(base))
	require.NoError(t, err)
	cfg, err := job.Build(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.EnabledKinds())
}

func TestJob_EnableAndSelections(t *testing.T) {
	job, err := ParseJob([]byte(base + "operations: {add_textbox: {text: hello}}"))
	require.NoError(t, err)
	job.Enable(domain.OpAddTextbox)
	job.Enable(domain.OpDeleteArea)
	job.WithSelections(domain.Selections{
		Textbox: &domain.Selection{Page: 2, Rect: domain.DocumentRect{X0: 1, Y0: 2, X1: 30, Y1: 40}},
		Area:    &domain.Selection{Rect: domain.DocumentRect{X0: 5, Y0: 5, X1: 6, Y1: 6}},
	})
	assert.Equal(t, []domain.OperationKind{domain.OpAddTextbox, domain.OpDeleteArea}, job.Enabled())

	cfg, err := job.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Textbox.Page)
	assert.Equal(t, 30.0, cfg.Textbox.Rect.X1)
	assert.Equal(t, 6.0, cfg.Area.Rect.Y1)
}

func TestPairs_Zip(t *testing.T) {
	assert.Equal(t, []domain.TextPair{{Find: "a", Replace: "1"}}, Pairs([]string{"a", "b"}, []string{"1"}))
	assert.Equal(t, []domain.TextPair{{Find: "a", Replace: "1"}}, Pairs([]string{"a"}, []string{"1", "2"}))
	assert.Empty(t, Pairs(nil, []string{"1"}))
}

func TestParseImageTarget(t *testing.T) {
	tests := map[string]domain.ImageTarget{
		"":      domain.AllImages(),
		"all":   domain.AllImages(),
		" 2 ":   domain.ImageAt(2),
		"007":   domain.ImageAt(7),
		"-1":    domain.AllImages(),
		"1.5":   domain.AllImages(),
		"first": domain.AllImages(),
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseImageTarget(in), "input %q", in)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a ,, b c ,"))
	assert.Empty(t, SplitList(" , "))
}

func TestStringList_RejectsMapping(t *testing.T) {
	_, err := ParseJob([]byte("find: {a: b}"))
	assert.Error(t, err)
}
