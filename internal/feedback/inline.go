package feedback

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/hungson175/teamvoice/internal/observability"
)

// Inline executes a feedback job synchronously within the triggering
// caller's request. Selected when the queue reports unavailable: higher
// latency on the trigger, but feedback keeps flowing.
type Inline struct {
	runner      Runner
	broadcaster *Broadcaster
	metrics     *observability.Metrics
}

func NewInline(runner Runner, broadcaster *Broadcaster, metrics *observability.Metrics) *Inline {
	return &Inline{runner: runner, broadcaster: broadcaster, metrics: metrics}
}

// Enqueue runs the job to completion before returning. Generation
// failures stay best-effort: logged, not surfaced to the caller.
func (i *Inline) Enqueue(ctx context.Context, sig Signal) (EnqueueResult, error) {
	if err := sig.Validate(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	task := Task{
		ID:         sig.TaskID(),
		SessionRef: sig.SessionRef,
		RoleRef:    sig.RoleRef,
		ContextID:  sig.ContextID,
		State:      StateRunning,
		EnqueuedAt: now,
		StartedAt:  &now,
	}

	msg, err := i.runner.Produce(ctx, task)
	if err != nil {
		i.metrics.FeedbackTasks.WithLabelValues("inline_failed").Inc()
		log.Printf("feedback: inline task=%s session=%s failed: %v", task.ID, task.SessionRef, err)
		sentry.CaptureException(err)
		return Accepted, nil
	}

	i.metrics.FeedbackTasks.WithLabelValues("inline_done").Inc()
	i.broadcaster.Publish(msg)
	return Accepted, nil
}
