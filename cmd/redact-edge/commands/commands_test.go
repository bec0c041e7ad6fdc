package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/pdf/pdftest"
)

func TestParseRect(t *testing.T) {
	rect, err := parseRect(" 1, 2.5,3 ,4")
	require.NoError(t, err)
	assert.Equal(t, config.Rect{1, 2.5, 3, 4}, rect)

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,3,4,5"} {
		_, err := parseRect(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestRunOptions_ApplyTo(t *testing.T) {
	given := func(names ...string) func(string) bool {
		set := map[string]bool{}
		for _, n := range names {
			set[n] = true
		}
		return func(name string) bool { return set[name] }
	}

	job, err := config.ParseJob([]byte(`
inputs: [from-file.pdf]
output_dir: file-out
find: alpha
operations:
  replace_image: {enabled: true, image: logo.png, image_index: "3"}
`))
	require.NoError(t, err)

	opts := runOptions{
		inputs:      []string{"cli.pdf"},
		outputDir:   "cli-out",
		replace:     "beta",
		imageIndex:  "all",
		deleteImage: true,
		textboxText: "Confidential",
		textboxRect: "72,72,200,100",
		textboxPage: 1,
		areaRect:    "0,0,10,10",
	}
	require.NoError(t, opts.applyTo(job, given(
		"output-dir", "replace", "image-index", "delete-image", "textbox-text", "textbox-rect", "textbox-page", "area-rect",
	)))

	cfg, err := job.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-file.pdf", "cli.pdf"}, cfg.Inputs)
	assert.Equal(t, "cli-out", cfg.OutputDir)
	assert.Equal(t, []domain.TextPair{{Find: "alpha", Replace: "beta"}}, cfg.ReplacePairs)
	assert.Equal(t, domain.AllImages(), cfg.Images, "--image-index overrides the per-operation index")
	assert.Equal(t, []domain.OperationKind{
		domain.OpReplaceText, domain.OpReplaceImage, domain.OpDeleteImage, domain.OpAddTextbox, domain.OpDeleteArea,
	}, cfg.EnabledKinds())
	assert.Equal(t, 1, cfg.Textbox.Page)
	assert.Equal(t, 200.0, cfg.Textbox.Rect.X1)
	assert.Equal(t, 10.0, cfg.Area.Rect.Y1)

	assert.Error(t, runOptions{areaRect: "1,2"}.applyTo(&config.Job{}, given("area-rect")))
}

func TestRunAndHistory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("REDACT_EDGE_JOURNAL", filepath.Join(dir, "journal.db"))

	in := pdftest.Write(t, filepath.Join(dir, "in", "memo.pdf"), pdftest.Page{Lines: []string{"foo"}})
	out := filepath.Join(dir, "out")

	rootCmd.SetArgs([]string{"run", "--no-color", "-i", in, "-o", out, "--find", "foo", "--replace", "bar"})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(filepath.Join(out, "memo_modified.pdf"))
	require.NoError(t, err)

	rootCmd.SetArgs([]string{"history", "--no-color"})
	require.NoError(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"history", "--no-color", "missing-run"})
	assert.Error(t, rootCmd.Execute())
}
