package feedback

import (
	"context"
	"errors"
	"log"

	"github.com/hungson175/teamvoice/internal/observability"
)

// Service is the trigger entry point. It prefers the queue and falls
// back to inline execution when the queue reports unavailable at
// enqueue time. Both paths end in the same broadcaster, so observers
// cannot tell which path produced a message.
type Service struct {
	queue   *Queue
	inline  *Inline
	metrics *observability.Metrics
}

func NewService(queue *Queue, inline *Inline, metrics *observability.Metrics) *Service {
	return &Service{queue: queue, inline: inline, metrics: metrics}
}

func (s *Service) Trigger(ctx context.Context, sig Signal) (EnqueueResult, error) {
	res, err := s.queue.Enqueue(ctx, sig)
	if errors.Is(err, ErrUnavailable) {
		s.metrics.FeedbackTasks.WithLabelValues("degraded").Inc()
		log.Printf("feedback: queue unavailable, running task for session=%s inline", sig.SessionRef)
		return s.inline.Enqueue(ctx, sig)
	}
	return res, err
}

// RecentTasks exposes the journal for the operational task listing.
func (s *Service) RecentTasks(ctx context.Context, limit int) ([]Task, error) {
	return s.queue.RecentTasks(ctx, limit)
}
