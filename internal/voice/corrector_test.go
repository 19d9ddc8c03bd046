package voice

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hungson175/teamvoice/internal/observability"
)

var testMetrics = observability.NewMetrics("voicetest")

type fakeStream struct {
	chunks []string
	errAt  error
	i      int
	closed bool
}

func (f *fakeStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if f.i >= len(f.chunks) {
		if f.errAt != nil {
			return openai.ChatCompletionStreamResponse{}, f.errAt
		}
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	chunk := f.chunks[f.i]
	f.i++
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: chunk}},
		},
	}, nil
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func testCorrector(start streamStarter) *Corrector {
	return &Corrector{
		model:   "test-model",
		timeout: time.Second,
		metrics: testMetrics,
		start:   start,
	}
}

func collect(events <-chan CorrectionEvent) []CorrectionEvent {
	var out []CorrectionEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestCorrectStreamsPartialsThenOneSent(t *testing.T) {
	fs := &fakeStream{chunks: []string{"deploy ", "the ", "service"}}
	c := testCorrector(func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
		return fs, nil
	})

	events := collect(c.Correct(context.Background(), "deploy the servis"))
	if len(events) != 4 {
		t.Fatalf("len(events) = %d, want 4", len(events))
	}
	for i := 0; i < 3; i++ {
		if events[i].Type != CorrectionPartial {
			t.Fatalf("events[%d].Type = %q, want partial", i, events[i].Type)
		}
	}
	last := events[3]
	if last.Type != CorrectionSent {
		t.Fatalf("terminal event type = %q, want sent", last.Type)
	}
	if last.Text != "deploy the service" {
		t.Fatalf("corrected text = %q, want %q", last.Text, "deploy the service")
	}
	if !fs.closed {
		t.Fatalf("stream not closed")
	}
}

func TestCorrectStreamErrorTerminatesWithFailed(t *testing.T) {
	fs := &fakeStream{chunks: []string{"depl"}, errAt: errors.New("upstream reset")}
	c := testCorrector(func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
		return fs, nil
	})

	events := collect(c.Correct(context.Background(), "deploy"))
	last := events[len(events)-1]
	if last.Type != CorrectionFailed {
		t.Fatalf("terminal event type = %q, want failed", last.Type)
	}
	if last.Code != "correction_failed" {
		t.Fatalf("Code = %q, want correction_failed", last.Code)
	}
	for _, ev := range events {
		if ev.Type == CorrectionSent {
			t.Fatalf("CommandSent emitted on a failed stream")
		}
	}
}

func TestCorrectStartErrorYieldsFailedOnly(t *testing.T) {
	c := testCorrector(func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
		return nil, errors.New("connection refused")
	})

	events := collect(c.Correct(context.Background(), "deploy"))
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Type != CorrectionFailed || events[0].Code != "correction_unavailable" {
		t.Fatalf("event = %+v, want failed/correction_unavailable", events[0])
	}
}

func TestCorrectEmptyResultFails(t *testing.T) {
	fs := &fakeStream{chunks: []string{"  ", ""}}
	c := testCorrector(func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
		return fs, nil
	})

	events := collect(c.Correct(context.Background(), "uh"))
	last := events[len(events)-1]
	if last.Type != CorrectionFailed || last.Code != "empty_correction" {
		t.Fatalf("terminal = %+v, want failed/empty_correction", last)
	}
}

func TestCorrectTimesOut(t *testing.T) {
	c := testCorrector(func(ctx context.Context, req openai.ChatCompletionRequest) (chatStream, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c.timeout = 20 * time.Millisecond

	events := collect(c.Correct(context.Background(), "deploy"))
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Type != CorrectionFailed || events[0].Code != "correction_timeout" {
		t.Fatalf("event = %+v, want failed/correction_timeout", events[0])
	}
}
