package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/hungson175/teamvoice/internal/agents"
	"github.com/hungson175/teamvoice/internal/observability"
	"github.com/hungson175/teamvoice/internal/synth"
)

// Runner executes the synthesis work for one claimed task.
type Runner interface {
	Produce(ctx context.Context, task Task) (Message, error)
}

// Producer is the production Runner: capture the session's recent
// output, summarize it, render the summary to speech.
type Producer struct {
	Layer            agents.SessionLayer
	Summarizer       synth.Summarizer
	Synth            *synth.CachingSynthesizer
	SynthesisTimeout time.Duration
	Metrics          *observability.Metrics
}

func (p *Producer) Produce(ctx context.Context, task Task) (Message, error) {
	started := time.Now()

	output, err := p.Layer.CaptureOutput(ctx, task.SessionRef, task.RoleRef)
	if err != nil {
		return Message{}, fmt.Errorf("capture output: %w", err)
	}

	summary, err := p.Summarizer.Summarize(ctx, task.SessionRef, task.RoleRef, output)
	if err != nil {
		return Message{}, fmt.Errorf("summarize: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, p.SynthesisTimeout)
	defer cancel()
	wav, _, err := p.Synth.Synthesize(sctx, summary)
	if err != nil {
		return Message{}, fmt.Errorf("synthesize: %w", err)
	}

	p.Metrics.ObserveSynthesisLatency(time.Since(started))
	return Message{
		SessionRef:  task.SessionRef,
		RoleRef:     task.RoleRef,
		SummaryText: summary,
		AudioWAV:    wav,
		ProducedAt:  time.Now().UTC(),
	}, nil
}
