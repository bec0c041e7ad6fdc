package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

var (
	ErrQueueFull   = errors.New("batch queue is full")
	ErrQueueClosed = errors.New("batch queue is closed")
)

// TaskState is the lifecycle position of a queued batch.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// TaskStatus is a snapshot of one queued batch.
type TaskStatus struct {
	ID          string               `json:"id"`
	RunID       string               `json:"run_id,omitempty"`
	State       TaskState            `json:"state"`
	Total       int                  `json:"total"`
	Done        int                  `json:"done"`
	Processed   int                  `json:"processed"`
	Failed      int                  `json:"failed"`
	LastEvent   string               `json:"last_event,omitempty"`
	Error       string               `json:"error,omitempty"`
	Summary     *domain.BatchSummary `json:"-"`
	SubmittedAt time.Time            `json:"submitted_at"`
	FinishedAt  time.Time            `json:"finished_at,omitempty"`
}

// ProgressFunc observes the events of one task.
type ProgressFunc func(domain.StreamEvent)

type task struct {
	id       string
	cfg      domain.JobConfig
	progress ProgressFunc
}

// Queue runs submitted batches one at a time on a single worker so the
// interactive side never blocks on a batch.
type Queue struct {
	runner *Runner
	logger *observability.Logger
	tasks  chan task

	mu       sync.RWMutex
	statuses map[string]*TaskStatus
	closed   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueue creates a queue holding up to size pending batches.
func NewQueue(runner *Runner, size int, logger *observability.Logger) *Queue {
	if size <= 0 {
		size = 16
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Queue{
		runner:   runner,
		logger:   logger.WithComponent("queue"),
		tasks:    make(chan task, size),
		statuses: make(map[string]*TaskStatus),
		done:     make(chan struct{}),
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	go q.work(ctx)
}

// Submit enqueues cfg and returns the task id.
func (q *Queue) Submit(cfg domain.JobConfig, progress ProgressFunc) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}

	t := task{id: uuid.New().String(), cfg: cfg, progress: progress}
	q.statuses[t.id] = &TaskStatus{
		ID:          t.id,
		State:       TaskQueued,
		Total:       len(cfg.Inputs),
		SubmittedAt: time.Now(),
	}
	select {
	case q.tasks <- t:
	default:
		delete(q.statuses, t.id)
		return "", ErrQueueFull
	}
	q.logger.Info().Str("task", t.id).Int("documents", len(cfg.Inputs)).Msg("Batch queued")
	return t.id, nil
}

// Status returns a copy of the task's status.
func (q *Queue) Status(id string) (TaskStatus, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	st, ok := q.statuses[id]
	if !ok {
		return TaskStatus{}, false
	}
	return *st, true
}

// Stop refuses new work, lets the running batch finish its current document
// and waits for the worker to exit. Pending tasks are cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()
	if q.cancel != nil {
		q.cancel()
		<-q.done
	}
}

func (q *Queue) work(ctx context.Context) {
	defer close(q.done)
	for t := range q.tasks {
		if ctx.Err() != nil {
			q.update(t.id, func(st *TaskStatus) {
				st.State = TaskCancelled
				st.FinishedAt = time.Now()
			})
			continue
		}
		q.run(ctx, t)
	}
}

func (q *Queue) run(ctx context.Context, t task) {
	q.update(t.id, func(st *TaskStatus) { st.State = TaskRunning })

	events := make(chan domain.StreamEvent, 256)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for ev := range events {
			q.update(t.id, func(st *TaskStatus) {
				st.LastEvent = string(ev.Type)
				st.RunID = ev.RunID
				switch ev.Type {
				case domain.EventDocumentComplete:
					st.Done++
					st.Processed++
				case domain.EventDocumentFailed:
					st.Done++
					st.Failed++
				}
			})
			if t.progress != nil {
				t.progress(ev)
			}
		}
	}()

	summary, err := q.runner.Run(ctx, t.cfg, events)
	close(events)
	<-forwarded

	q.update(t.id, func(st *TaskStatus) {
		st.Summary = summary
		if summary != nil {
			st.Processed = summary.Processed
			st.Failed = summary.Failed
		}
		st.FinishedAt = time.Now()
		switch {
		case errors.Is(err, context.Canceled):
			st.State = TaskCancelled
		case err != nil:
			st.State = TaskFailed
			st.Error = err.Error()
		default:
			st.State = TaskCompleted
		}
	})
	if err != nil {
		q.logger.Error().Err(err).Str("task", t.id).Msg("Batch ended early")
		return
	}
	q.logger.Info().Str("task", t.id).Int("processed", summary.Processed).Msg("Batch finished")
}

func (q *Queue) update(id string, fn func(*TaskStatus)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.statuses[id]; ok {
		fn(st)
	}
}
