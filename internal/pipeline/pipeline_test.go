package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/domain/domaintest"
	"github.com/spherical/redact-edge/internal/ops"
)

// mockOp copies its input to out and records the call.
type mockOp struct {
	kind   domain.OperationKind
	status domain.StepStatus
	calls  *[]string
	inputs []string
}

func (m *mockOp) Kind() domain.OperationKind { return m.kind }

func (m *mockOp) Apply(ctx context.Context, in, out string) ops.Result {
	m.inputs = append(m.inputs, in)
	if m.calls != nil {
		*m.calls = append(*m.calls, m.kind.String())
	}
	switch m.status {
	case domain.StepSkipped:
		return ops.Skipped("nothing")
	case domain.StepFailed:
		os.WriteFile(out, []byte("partial"), 0o644)
		return ops.Failed(errors.New("boom"))
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return ops.Failed(err)
	}
	if err := os.WriteFile(out, append(data, []byte("+"+m.kind.Suffix())...), 0o644); err != nil {
		return ops.Failed(err)
	}
	return ops.Applied("ok")
}

type env struct {
	source string
	outDir string
	work   string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "in", "report.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("src"), 0o644))
	return env{source: src, outDir: filepath.Join(dir, "out"), work: filepath.Join(dir, "work")}
}

func workFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPlan_FixedOrder(t *testing.T) {
	var calls []string
	set := map[domain.OperationKind]ops.Operation{}
	// enable in reverse
	for i := len(domain.PipelineOrder) - 1; i >= 0; i-- {
		k := domain.PipelineOrder[i]
		set[k] = &mockOp{kind: k, calls: &calls}
	}

	e := newEnv(t)
	_, err := New(e.work, nil).Run(context.Background(), Job{Source: e.source, OutputDir: e.outDir, Plan: Plan(set)})
	require.NoError(t, err)
	assert.Equal(t, []string{"delete-text", "replace-text", "replace-image", "delete-image", "add-textbox", "delete-area"}, calls)
}

func TestRun_ChainsAndCleansUp(t *testing.T) {
	e := newEnv(t)
	a := &mockOp{kind: domain.OpDeleteText}
	b := &mockOp{kind: domain.OpReplaceText}
	c := &mockOp{kind: domain.OpDeleteArea}

	var reports []domain.StepReport
	outcome, err := New(e.work, nil).Run(context.Background(), Job{
		Source:    e.source,
		OutputDir: e.outDir,
		Plan:      []ops.Operation{a, b, c},
		OnStep:    func(r domain.StepReport) { reports = append(reports, r) },
	})
	require.NoError(t, err)

	assert.Equal(t, e.source, a.inputs[0])
	assert.Equal(t, outcome.Steps[0].Artifact, b.inputs[0])
	assert.Equal(t, outcome.Steps[1].Artifact, c.inputs[0])
	assert.Len(t, reports, 3)
	assert.Equal(t, 3, outcome.Applied)

	// three successes leave one artifact: two intermediates removed, tail promoted
	assert.Equal(t, 2, outcome.Removed)
	assert.Empty(t, workFiles(t, e.work))
	assert.Equal(t, filepath.Join(e.outDir, "report_modified.pdf"), outcome.Output)
	data, err := os.ReadFile(outcome.Output)
	require.NoError(t, err)
	assert.Equal(t, "src+deltext+replacetext+delarea", string(data))

	src, err := os.ReadFile(e.source)
	require.NoError(t, err)
	assert.Equal(t, "src", string(src))
}

func TestRun_FailureLeavesTail(t *testing.T) {
	e := newEnv(t)
	a := &mockOp{kind: domain.OpDeleteText}
	b := &mockOp{kind: domain.OpReplaceImage, status: domain.StepFailed}
	c := &mockOp{kind: domain.OpAddTextbox}

	outcome, err := New(e.work, nil).Run(context.Background(), Job{
		Source: e.source, OutputDir: e.outDir, Plan: []ops.Operation{a, b, c},
	})
	require.NoError(t, err)

	assert.Equal(t, b.inputs[0], c.inputs[0], "next step gets the same tail")
	assert.Equal(t, domain.StepFailed, outcome.Steps[1].Status)
	assert.Empty(t, outcome.Steps[1].Artifact)
	assert.EqualError(t, outcome.Steps[1].Err, "boom")
	assert.Empty(t, workFiles(t, e.work), "partial artifact removed")

	data, err := os.ReadFile(outcome.Output)
	require.NoError(t, err)
	assert.Equal(t, "src+deltext+addtextbox", string(data))
}

func TestRun_NothingAppliedCopiesSource(t *testing.T) {
	e := newEnv(t)
	outcome, err := New(e.work, nil).Run(context.Background(), Job{
		Source: e.source, OutputDir: e.outDir,
		Plan: []ops.Operation{&mockOp{kind: domain.OpReplaceText, status: domain.StepSkipped}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.Applied)

	data, err := os.ReadFile(outcome.Output)
	require.NoError(t, err)
	assert.Equal(t, "src", string(data))
	_, err = os.Stat(e.source)
	assert.NoError(t, err, "source stays in place")
}

func TestRun_PromotionFailure(t *testing.T) {
	e := newEnv(t)
	// a regular file where the output directory should be
	require.NoError(t, os.WriteFile(e.outDir, []byte("x"), 0o644))

	outcome, err := New(e.work, nil).Run(context.Background(), Job{
		Source: e.source, OutputDir: e.outDir,
		Plan: []ops.Operation{&mockOp{kind: domain.OpDeleteText}, &mockOp{kind: domain.OpDeleteArea}},
	})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	assert.Empty(t, outcome.Output)
	assert.Empty(t, workFiles(t, e.work), "intermediates removed after failed promotion")
}

func TestRun_WithRealOperations(t *testing.T) {
	e := newEnv(t)
	domaintest.WriteState(t, e.source, domaintest.Letter(3, "foo"))
	engine := domaintest.NewEngine()

	cfg := domain.JobConfig{
		ReplacePairs: []domain.TextPair{{Find: "foo", Replace: "bar"}},
		Area:         domain.Selection{Page: 1, Rect: domain.DocumentRect{X0: 50, Y0: 50, X1: 300, Y1: 150}},
	}.Enable(domain.OpDeleteArea).Enable(domain.OpReplaceText)

	outcome, err := New(e.work, nil).Run(context.Background(), Job{
		Source:    e.source,
		OutputDir: e.outDir,
		Plan:      Plan(ops.FromJob(cfg, ops.Deps{Engine: engine})),
	})
	require.NoError(t, err)
	require.Len(t, outcome.Steps, 2)
	assert.Equal(t, domain.OpReplaceText, outcome.Steps[0].Kind)

	st := domaintest.ReadState(t, outcome.Output)
	assert.Equal(t, []string{"bar"}, st.Pages[2].Text)
	assert.Len(t, st.Pages[1].Fills, 1)
	assert.Empty(t, st.Pages[0].Fills)
}
