package agents

import (
	"context"
	"fmt"

	"github.com/hungson175/teamvoice/internal/observability"
)

// Dispatcher sends corrected commands to the session layer. Failures
// are surfaced immediately and never retried here: resending against a
// live interactive session risks double execution, so the operator
// decides whether to resend.
type Dispatcher struct {
	layer   SessionLayer
	metrics *observability.Metrics
}

func NewDispatcher(layer SessionLayer, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{layer: layer, metrics: metrics}
}

func (d *Dispatcher) Dispatch(ctx context.Context, sessionRef, roleRef, text string) error {
	if sessionRef == "" {
		return fmt.Errorf("dispatch: empty session ref")
	}
	if err := d.layer.SendText(ctx, sessionRef, roleRef, text); err != nil {
		d.metrics.Dispatches.WithLabelValues("error").Inc()
		return fmt.Errorf("dispatch to %s: %w", sessionRef, err)
	}
	d.metrics.Dispatches.WithLabelValues("ok").Inc()
	return nil
}
