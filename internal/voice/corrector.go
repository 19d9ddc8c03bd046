package voice

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hungson175/teamvoice/internal/observability"
)

type CorrectionEventType string

const (
	CorrectionPartial CorrectionEventType = "partial"
	CorrectionSent    CorrectionEventType = "sent"
	CorrectionFailed  CorrectionEventType = "failed"
)

// CorrectionEvent is one element of a correction stream. The stream is
// a sequence of partials terminated by exactly one Sent or Failed event.
type CorrectionEvent struct {
	Type   CorrectionEventType
	Text   string
	Code   string
	Detail string
}

const correctionSystemPrompt = `You clean up raw speech-to-text transcripts of operator commands addressed to software agents.
Fix transcription mistakes, drop filler words and false starts, and keep the operator's intent exactly.
Reply with the corrected command text only, no quotes, no commentary.`

type chatStream interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

type streamStarter func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error)

// Corrector turns a finalized raw utterance into a corrected command via
// a streamed chat completion. It never dispatches anything itself.
type Corrector struct {
	model   string
	timeout time.Duration
	metrics *observability.Metrics
	start   streamStarter
}

func NewCorrector(client *openai.Client, model string, timeout time.Duration, metrics *observability.Metrics) *Corrector {
	return &Corrector{
		model:   model,
		timeout: timeout,
		metrics: metrics,
		start: func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
			return client.CreateChatCompletionStream(ctx, req)
		},
	}
}

// Correct streams the correction for rawText. The returned channel
// carries zero or more CorrectionPartial events followed by exactly one
// terminal event, then closes. A service error or timeout yields a
// CorrectionFailed terminal and no corrected command.
func (c *Corrector) Correct(ctx context.Context, rawText string) <-chan CorrectionEvent {
	out := make(chan CorrectionEvent, 16)
	go func() {
		defer close(out)
		started := time.Now()

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		stream, err := c.start(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Temperature: 0.1,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: correctionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: rawText},
			},
		})
		if err != nil {
			c.metrics.ProviderErrors.WithLabelValues("corrector", "start").Inc()
			c.fail(ctx, out, "correction_unavailable", err)
			return
		}
		defer stream.Close()

		var b strings.Builder
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				c.metrics.ProviderErrors.WithLabelValues("corrector", "stream").Inc()
				c.fail(ctx, out, "correction_failed", err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			b.WriteString(delta)
			c.emit(ctx, out, CorrectionEvent{Type: CorrectionPartial, Text: delta})
		}

		final := strings.TrimSpace(b.String())
		if final == "" {
			c.fail(ctx, out, "empty_correction", errors.New("service returned no text"))
			return
		}
		c.metrics.ObserveCorrectionLatency(time.Since(started))
		c.emit(ctx, out, CorrectionEvent{Type: CorrectionSent, Text: final})
	}()
	return out
}

func (c *Corrector) fail(ctx context.Context, out chan<- CorrectionEvent, code string, err error) {
	detail := err.Error()
	if ctx.Err() != nil {
		code = "correction_timeout"
		detail = ctx.Err().Error()
	}
	c.emit(ctx, out, CorrectionEvent{Type: CorrectionFailed, Code: code, Detail: detail})
}

func (c *Corrector) emit(ctx context.Context, out chan<- CorrectionEvent, ev CorrectionEvent) {
	select {
	case out <- ev:
	default:
		// The consumer stopped reading; the terminal event still matters,
		// partials do not.
		if ev.Type != CorrectionPartial {
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}
}
