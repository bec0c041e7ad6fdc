package batch

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/domain/domaintest"
)

func waitFor(t *testing.T, q *Queue, id string, state TaskState) TaskStatus {
	t.Helper()
	var st TaskStatus
	require.Eventually(t, func() bool {
		var ok bool
		st, ok = q.Status(id)
		return ok && st.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return st
}

func TestQueue_RunsTasksInOrder(t *testing.T) {
	e := newBatchEnv(t)
	a := e.doc(t, "a.pdf", domaintest.Letter(1, "foo"))
	b := e.doc(t, "b.pdf", domaintest.Letter(1, "foo"))

	q := NewQueue(e.runner, 4, nil)
	q.Start(context.Background())
	defer q.Stop()

	var mu sync.Mutex
	var order []string
	progress := func(ev domain.StreamEvent) {
		if ev.Type == domain.EventDocumentStart {
			mu.Lock()
			order = append(order, ev.Document)
			mu.Unlock()
		}
	}

	first, err := q.Submit(e.job(a), progress)
	require.NoError(t, err)
	second, err := q.Submit(e.job(b), progress)
	require.NoError(t, err)

	st := waitFor(t, q, second, TaskCompleted)
	assert.Equal(t, 1, st.Done)
	assert.Equal(t, 1, st.Processed)
	assert.Zero(t, st.Failed)
	assert.Equal(t, string(domain.EventComplete), st.LastEvent)
	require.NotNil(t, st.Summary)
	assert.Equal(t, 1, st.Summary.Processed)

	st, ok := q.Status(first)
	require.True(t, ok)
	assert.Equal(t, TaskCompleted, st.State)

	mu.Lock()
	assert.Equal(t, []string{a, b}, order)
	mu.Unlock()
}

func TestQueue_StatusCountsOutcomes(t *testing.T) {
	e := newBatchEnv(t)
	a := e.doc(t, "a.pdf", domaintest.Letter(1, "foo"))
	missing := filepath.Join(e.dir, "in", "missing.pdf")

	q := NewQueue(e.runner, 1, nil)
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Submit(e.job(a, missing), nil)
	require.NoError(t, err)
	st := waitFor(t, q, id, TaskCompleted)
	assert.Equal(t, 2, st.Done)
	assert.Equal(t, 1, st.Processed)
	assert.Equal(t, 1, st.Failed)

	body, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"processed":1`)
	assert.Contains(t, string(body), `"failed":1`)
}

func TestQueue_FailedTask(t *testing.T) {
	e := newBatchEnv(t)
	q := NewQueue(e.runner, 1, nil)
	q.Start(context.Background())
	defer q.Stop()

	cfg := e.job()
	cfg.OutputDir = ""
	id, err := q.Submit(cfg, nil)
	require.NoError(t, err)

	st := waitFor(t, q, id, TaskFailed)
	assert.Contains(t, st.Error, "output directory")
}

func TestQueue_FullAndClosed(t *testing.T) {
	e := newBatchEnv(t)
	q := NewQueue(e.runner, 1, nil)
	// not started, so nothing drains the queue

	_, err := q.Submit(e.job(), nil)
	require.NoError(t, err)
	_, err = q.Submit(e.job(), nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	q.Stop()
	_, err = q.Submit(e.job(), nil)
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, ok := q.Status("nope")
	assert.False(t, ok)
}
