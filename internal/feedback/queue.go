package feedback

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hungson175/teamvoice/internal/observability"
)

var ErrUnavailable = errors.New("feedback queue unavailable")

type EnqueueResult string

const (
	Accepted  EnqueueResult = "accepted"
	Duplicate EnqueueResult = "duplicate_ignored"
)

// Queue owns feedback tasks from enqueue to terminal state. Enqueue is
// idempotent on the signal's TaskID: while a task for the same signal
// is queued, running, or recently finished, re-delivery is a no-op.
// Terminal tasks are retained for the retention window only, to bound
// the dedup index.
type Queue struct {
	runner      Runner
	broadcaster *Broadcaster
	store       Store
	metrics     *observability.Metrics
	retention   time.Duration

	mu      sync.Mutex
	tasks   map[string]*Task
	work    chan string
	stopped bool
}

func NewQueue(runner Runner, broadcaster *Broadcaster, store Store, queueDepth int, retention time.Duration, metrics *observability.Metrics) *Queue {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	if retention <= 0 {
		retention = 30 * time.Second
	}
	return &Queue{
		runner:      runner,
		broadcaster: broadcaster,
		store:       store,
		metrics:     metrics,
		retention:   retention,
		tasks:       make(map[string]*Task),
		work:        make(chan string, queueDepth),
	}
}

// Start launches the worker pool. Workers stop when ctx ends.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	for i := 0; i < workers; i++ {
		go q.worker(ctx)
	}
}

// Enqueue registers the signal's task and hands it to the worker pool.
// Returns Duplicate when a task for the same signal already exists, and
// ErrUnavailable when the backlog is full or the queue is stopped; the
// caller decides whether to degrade to inline execution.
func (q *Queue) Enqueue(ctx context.Context, sig Signal) (EnqueueResult, error) {
	if err := sig.Validate(); err != nil {
		return "", err
	}
	id := sig.TaskID()
	now := time.Now().UTC()

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return "", ErrUnavailable
	}
	if _, exists := q.tasks[id]; exists {
		q.mu.Unlock()
		q.metrics.FeedbackTasks.WithLabelValues("duplicate").Inc()
		return Duplicate, nil
	}

	task := &Task{
		ID:         id,
		SessionRef: sig.SessionRef,
		RoleRef:    sig.RoleRef,
		ContextID:  sig.ContextID,
		State:      StateQueued,
		EnqueuedAt: now,
	}
	select {
	case q.work <- id:
	default:
		q.mu.Unlock()
		return "", ErrUnavailable
	}
	q.tasks[id] = task
	snapshot := *task
	q.mu.Unlock()

	q.metrics.FeedbackTasks.WithLabelValues("enqueued").Inc()
	q.journal(snapshot)
	return Accepted, nil
}

// Stop refuses further enqueues. In-flight tasks finish under their
// workers' context.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
}

// Task returns a snapshot of the task for the given id.
func (q *Queue) Task(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// RecentTasks lists journal entries, newest first.
func (q *Queue) RecentTasks(ctx context.Context, limit int) ([]Task, error) {
	if q.store == nil {
		return nil, nil
	}
	return q.store.ListRecent(ctx, limit)
}

func (q *Queue) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.work:
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.State != StateQueued {
		q.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	task.State = StateRunning
	task.StartedAt = &now
	claimed := *task
	q.mu.Unlock()
	q.journal(claimed)

	msg, err := q.runner.Produce(ctx, claimed)

	q.mu.Lock()
	ended := time.Now().UTC()
	task.EndedAt = &ended
	if err != nil {
		task.State = StateFailed
		task.Error = err.Error()
	} else {
		task.State = StateDone
	}
	finished := *task
	q.mu.Unlock()
	q.journal(finished)
	q.expireAfterRetention(id)

	if err != nil {
		// Feedback is best-effort: the failure is logged and reported,
		// never published, never retried.
		q.metrics.FeedbackTasks.WithLabelValues("failed").Inc()
		log.Printf("feedback: task=%s session=%s failed: %v", id, finished.SessionRef, err)
		sentry.CaptureException(err)
		return
	}

	q.metrics.FeedbackTasks.WithLabelValues("done").Inc()
	q.broadcaster.Publish(msg)
}

func (q *Queue) expireAfterRetention(id string) {
	time.AfterFunc(q.retention, func() {
		q.mu.Lock()
		if task, ok := q.tasks[id]; ok && task.State.Terminal() {
			delete(q.tasks, id)
		}
		q.mu.Unlock()
	})
}

func (q *Queue) journal(task Task) {
	if q.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.store.SaveTask(ctx, task); err != nil {
		log.Printf("feedback: journal task=%s: %v", task.ID, err)
	}
}
