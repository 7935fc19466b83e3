package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/observability"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("upload queue is closed")

// Config holds optional queue collaborators.
type Config struct {
	Events  Events
	Logger  logging.Logger
	Metrics *observability.UploadMetrics
	Tracer  *observability.Tracer
	Now     func() time.Time
}

// Snapshot is a point-in-time copy of the queue.
type Snapshot struct {
	Current   *Task  `json:"current,omitempty"`
	Queued    []Task `json:"queued"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
}

// Queue uploads files one at a time in FIFO order.
//
// At most one task is uploading at any instant, and the next task is
// dequeued only once the slot is empty. Terminal tasks are dropped from the
// queue; only counters remain.
type Queue struct {
	uploader Uploader
	events   Events
	logger   logging.Logger
	metrics  *observability.UploadMetrics
	tracer   *observability.Tracer
	now      func() time.Time

	base context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	closed     bool
	pending    []*Task
	current    *Task
	cancel     context.CancelFunc
	aborting   *Task // cancelled, transfer not yet returned
	outbox     []func(Events)
	delivering bool
	idle       chan struct{}
	idleClosed bool

	completed int
	failed    int
	cancelled int
}

// NewQueue creates an idle queue that transfers files with uploader.
func NewQueue(uploader Uploader, cfg Config) *Queue {
	if cfg.Events == nil {
		cfg.Events = EventFuncs{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewTracer()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	base, stop := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	return &Queue{
		uploader:   uploader,
		events:     cfg.Events,
		logger:     cfg.Logger.With(logging.F("component", "upload_queue")),
		metrics:    cfg.Metrics,
		tracer:     cfg.Tracer,
		now:        cfg.Now,
		base:       base,
		stop:       stop,
		idle:       idle,
		idleClosed: true,
	}
}

// Enqueue appends files to the tail of the queue and starts the head if
// nothing is uploading. It returns copies of the new tasks.
func (q *Queue) Enqueue(files ...File) ([]Task, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}

	now := q.now()
	added := make([]Task, 0, len(files))
	for _, f := range files {
		t := &Task{ID: uuid.NewString(), File: f, State: StateQueued, EnqueuedAt: now}
		q.pending = append(q.pending, t)
		added = append(added, *t)
	}
	if len(added) > 0 {
		batch := append([]Task(nil), added...)
		q.emitLocked(func(e Events) { e.OnEnqueued(batch) })
		q.logger.Debug("Enqueued files", logging.F("count", len(added)), logging.F("queued", len(q.pending)))
	}
	q.dispatchLocked()
	q.gaugesLocked()
	q.mu.Unlock()

	q.flush()
	return added, nil
}

// ProcessNext starts the head task if nothing is uploading. It is safe to
// call at any time and reports whether a task was started.
func (q *Queue) ProcessNext() bool {
	q.mu.Lock()
	started := q.dispatchLocked()
	q.gaugesLocked()
	q.mu.Unlock()

	q.flush()
	return started
}

// dispatchLocked moves the head task into the current slot.
func (q *Queue) dispatchLocked() bool {
	if q.closed || q.current != nil || q.aborting != nil || len(q.pending) == 0 {
		return false
	}

	t := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]

	now := q.now()
	t.State = StateUploading
	t.Progress = 0
	t.StartedAt = &now

	ctx, cancel := context.WithCancel(q.base)
	q.current = t
	q.cancel = cancel

	q.metrics.RecordDispatch(now.Sub(t.EnqueuedAt).Seconds())
	snap := *t
	q.emitLocked(func(e Events) { e.OnStarted(snap) })

	go q.run(ctx, t.ID, t.File)
	return true
}

func (q *Queue) run(ctx context.Context, id string, file File) {
	ctx, span := q.tracer.StartUploadSpan(ctx, id, file.Name(), file.Size())
	err := q.uploader.Upload(ctx, file, func(sent, total int64) {
		q.progress(id, sent, total)
	})
	observability.EndSpan(span, err)
	q.finish(id, err)
}

// progress records transfer progress for the current task. Percentages
// never decrease.
func (q *Queue) progress(id string, sent, total int64) {
	q.mu.Lock()
	t := q.current
	if t == nil || t.ID != id {
		q.mu.Unlock()
		return
	}

	if total <= 0 {
		if t.Indeterminate {
			q.mu.Unlock()
			return
		}
		t.Indeterminate = true
	} else {
		pct := float64(sent) / float64(total) * 100
		if pct > 100 {
			pct = 100
		}
		if pct <= t.Progress && !t.Indeterminate {
			q.mu.Unlock()
			return
		}
		if pct > t.Progress {
			t.Progress = pct
		}
		t.Indeterminate = false
	}

	snap := *t
	q.emitLocked(func(e Events) { e.OnProgress(snap) })
	q.mu.Unlock()

	q.flush()
}

// finish settles the upload of id. Results for a task that is no longer
// current (cancelled) are dropped, and the slot is handed to the next task.
func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	t := q.current
	if t == nil || t.ID != id {
		if a := q.aborting; a != nil && a.ID == id {
			q.aborting = nil
			q.releaseLocked(a)
			q.dispatchLocked()
			q.gaugesLocked()
		}
		q.mu.Unlock()
		q.flush()
		return
	}
	q.cancel()
	q.current, q.cancel = nil, nil

	now := q.now()
	t.FinishedAt = &now
	elapsed := now.Sub(*t.StartedAt).Seconds()

	switch {
	case err == nil:
		t.State = StateCompleted
		t.Progress = 100
		t.Indeterminate = false
		q.completed++
		size := t.Size()
		if size < 0 {
			size = 0
		}
		q.metrics.RecordFinished(observability.OutcomeCompleted, elapsed, size)
		snap := *t
		q.emitLocked(func(e Events) { e.OnComplete(snap) })
	case q.base.Err() != nil:
		t.State = StateCancelled
		t.Progress = 0
		q.cancelled++
		q.metrics.RecordFinished(observability.OutcomeCancelled, elapsed, 0)
		snap := *t
		q.emitLocked(func(e Events) { e.OnCancelled(snap) })
	default:
		t.State = StateFailed
		t.Err = err
		q.failed++
		q.metrics.RecordFinished(observability.OutcomeFailed, elapsed, 0)
		snap := *t
		q.emitLocked(func(e Events) { e.OnFailed(snap, err) })
	}
	q.releaseLocked(t)

	q.dispatchLocked()
	q.gaugesLocked()
	q.mu.Unlock()

	q.flush()
}

// Cancel aborts the uploading task, or removes a queued one. The next task
// starts once the aborted transfer has returned from the Uploader, so two
// transfers never overlap.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()

	if t := q.current; t != nil && t.ID == id {
		q.cancel()
		q.current, q.cancel = nil, nil

		now := q.now()
		t.State = StateCancelled
		t.Progress = 0
		t.Indeterminate = false
		t.FinishedAt = &now
		q.cancelled++
		q.metrics.RecordFinished(observability.OutcomeCancelled, now.Sub(*t.StartedAt).Seconds(), 0)

		snap := *t
		q.emitLocked(func(e Events) { e.OnCancelled(snap) })
		q.aborting = t
		q.gaugesLocked()
		q.mu.Unlock()

		q.flush()
		return nil
	}

	if i := q.indexLocked(id); i >= 0 {
		q.removeLocked(i)
		q.gaugesLocked()
		q.mu.Unlock()

		q.flush()
		return nil
	}

	q.mu.Unlock()
	return fmt.Errorf("upload %s: %w", id, viqerrors.ErrNotFound)
}

// Remove drops a queued task. The uploading task cannot be removed; use Cancel.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()

	if q.current != nil && q.current.ID == id {
		q.mu.Unlock()
		return fmt.Errorf("upload %s is in progress, cancel it instead: %w", id, viqerrors.ErrInvalidState)
	}

	i := q.indexLocked(id)
	if i < 0 {
		q.mu.Unlock()
		return fmt.Errorf("upload %s: %w", id, viqerrors.ErrNotFound)
	}
	q.removeLocked(i)
	q.gaugesLocked()
	q.mu.Unlock()

	q.flush()
	return nil
}

// Clear drops every queued task and returns how many were dropped. The
// uploading task is left alone.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := q.clearLocked()
	q.gaugesLocked()
	q.mu.Unlock()

	q.flush()
	return n
}

func (q *Queue) clearLocked() int {
	n := len(q.pending)
	for _, t := range q.pending {
		q.releaseLocked(t)
	}
	q.pending = nil
	q.emitLocked(func(e Events) { e.OnCleared(n) })
	return n
}

func (q *Queue) indexLocked(id string) int {
	for i, t := range q.pending {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (q *Queue) removeLocked(i int) {
	t := q.pending[i]
	q.pending = append(q.pending[:i], q.pending[i+1:]...)
	snap := *t
	q.emitLocked(func(e Events) { e.OnRemoved(snap) })
	q.releaseLocked(t)
}

// Snapshot returns copies of the current and queued tasks.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		Queued:    make([]Task, 0, len(q.pending)),
		Completed: q.completed,
		Failed:    q.failed,
		Cancelled: q.cancelled,
	}
	if q.current != nil {
		cur := *q.current
		s.Current = &cur
	}
	for _, t := range q.pending {
		s.Queued = append(s.Queued, *t)
	}
	return s
}

// Wait blocks until nothing is uploading or queued and every event has been
// delivered. It must not be called from an event handler.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close aborts the current upload, drops queued tasks and rejects further
// Enqueue calls. Use Wait to block until the abort is settled.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	if len(q.pending) > 0 {
		q.clearLocked()
	}
	q.gaugesLocked()
	q.mu.Unlock()

	q.stop()
	q.flush()
	return nil
}

// releaseLocked queues the release of t's file behind the events already
// emitted for it, so handlers can still read the file.
func (q *Queue) releaseLocked(t *Task) {
	r, ok := t.File.(Releaser)
	if !ok {
		return
	}
	name := t.Name()
	q.emitLocked(func(Events) {
		if err := r.Release(); err != nil {
			q.logger.Warn("Failed to release upload file", logging.F("file", name), logging.Err(err))
		}
	})
}

func (q *Queue) gaugesLocked() {
	q.metrics.SetQueueState(len(q.pending), q.current != nil)
}

// emitLocked appends a notification to the outbox. The queue is busy until
// the outbox is drained.
func (q *Queue) emitLocked(fn func(Events)) {
	q.outbox = append(q.outbox, fn)
	if q.idleClosed {
		q.idle = make(chan struct{})
		q.idleClosed = false
	}
}

// flush delivers queued notifications in order. Only one goroutine
// delivers at a time; others leave their events to it.
func (q *Queue) flush() {
	q.mu.Lock()
	if q.delivering {
		q.mu.Unlock()
		return
	}
	q.delivering = true
	for len(q.outbox) > 0 {
		fn := q.outbox[0]
		q.outbox[0] = nil
		q.outbox = q.outbox[1:]
		q.mu.Unlock()
		fn(q.events)
		q.mu.Lock()
	}
	q.delivering = false
	if q.current == nil && q.aborting == nil && len(q.pending) == 0 && !q.idleClosed {
		close(q.idle)
		q.idleClosed = true
	}
	q.mu.Unlock()
}
