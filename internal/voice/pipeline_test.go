package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hungson175/teamvoice/internal/audio"
	"github.com/hungson175/teamvoice/internal/protocol"
	"github.com/hungson175/teamvoice/internal/session"
)

type fakeRewriter struct {
	events []CorrectionEvent
}

func (f *fakeRewriter) Correct(ctx context.Context, rawText string) <-chan CorrectionEvent {
	out := make(chan CorrectionEvent, len(f.events)+1)
	for _, ev := range f.events {
		out <- ev
	}
	close(out)
	return out
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, sessionRef, roleRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, sessionRef+"/"+roleRef+": "+text)
	return nil
}

func (f *fakeDispatcher) dispatched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

type pipelineHarness struct {
	pipeline   *Pipeline
	mock       *MockTranscriber
	dispatcher *fakeDispatcher
	sess       *session.Session
	inbound    chan any
	outbound   chan any
	done       chan error
}

func startPipeline(t *testing.T, detection session.DetectionConfig, rewriter CommandRewriter) *pipelineHarness {
	t.Helper()
	mgr := session.NewManager(time.Minute)
	sess := mgr.Create("operator-1", detection)
	mock := NewMockTranscriber()
	disp := &fakeDispatcher{}
	p := &Pipeline{
		Transcriber: mock,
		Rewriter:    rewriter,
		Dispatcher:  disp,
		Sessions:    mgr,
		Metrics:     testMetrics,
		Stream:      StreamConfig{SampleRate: 16000, Encoding: "linear16"},
	}

	h := &pipelineHarness{
		pipeline:   p,
		mock:       mock,
		dispatcher: disp,
		sess:       sess,
		inbound:    make(chan any, 64),
		outbound:   make(chan any, 256),
		done:       make(chan error, 1),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go func() {
		h.done <- p.RunConnection(ctx, ConnectionParams{Session: sess, AgentRef: "backend", RoleRef: "dev"}, h.inbound, h.outbound)
	}()
	return h
}

func (h *pipelineHarness) emitFinal(t *testing.T, text string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.mock.Emit(h.sess.ID, TokenEvent{Type: TokenFinal, Text: text, TSMs: time.Now().UnixMilli()}) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("stream for session %s never opened", h.sess.ID)
}

// drainUntil reads outbound until a message of the wanted type arrives.
func drainUntil[T any](t *testing.T, outbound <-chan any) (T, []any) {
	t.Helper()
	var seen []any
	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-outbound:
			if want, ok := msg.(T); ok {
				return want, seen
			}
			seen = append(seen, msg)
		case <-deadline:
			var zero T
			t.Fatalf("no %T before deadline, saw %d other messages", zero, len(seen))
		}
	}
}

func TestPipelineStopPhraseTurn(t *testing.T) {
	rewriter := &fakeRewriter{events: []CorrectionEvent{
		{Type: CorrectionPartial, Text: "deploy "},
		{Type: CorrectionPartial, Text: "the service"},
		{Type: CorrectionSent, Text: "deploy the service"},
	}}
	h := startPipeline(t, session.DetectionConfig{Mode: "stop_phrase", StopPhrase: "go go go"}, rewriter)

	h.emitFinal(t, "deploy the servis")
	h.emitFinal(t, "go go go")

	result, seen := drainUntil[protocol.DispatchResult](t, h.outbound)
	if !result.Success {
		t.Fatalf("DispatchResult.Success = false, reason %q", result.FailReason)
	}
	if result.AgentRef != "backend" || result.RoleRef != "dev" {
		t.Fatalf("result routing = %s/%s, want backend/dev", result.AgentRef, result.RoleRef)
	}

	var sent int
	var utteranceText string
	for _, msg := range seen {
		switch m := msg.(type) {
		case protocol.CommandSent:
			sent++
			if m.Text != "deploy the service" {
				t.Fatalf("CommandSent.Text = %q", m.Text)
			}
		case protocol.UtteranceFinal:
			utteranceText = m.Text
		}
	}
	if sent != 1 {
		t.Fatalf("CommandSent count = %d, want exactly 1", sent)
	}
	if utteranceText != "deploy the servis" {
		t.Fatalf("UtteranceFinal.Text = %q, want raw transcript without stop phrase", utteranceText)
	}

	if got := h.dispatcher.dispatched(); len(got) != 1 || got[0] != "backend/dev: deploy the service" {
		t.Fatalf("dispatched = %v", got)
	}

	close(h.inbound)
	if err := <-h.done; err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}
}

func TestPipelineSilenceModeEndToEnd(t *testing.T) {
	rewriter := &fakeRewriter{events: []CorrectionEvent{
		{Type: CorrectionSent, Text: "restart the worker"},
	}}
	h := startPipeline(t, session.DetectionConfig{
		Mode:               "silence",
		SilenceThresholdDb: -40,
		SilenceDurationMs:  2000,
	}, rewriter)

	h.emitFinal(t, "restart the worker")

	chunk := func(f audio.Frame) protocol.ClientAudioChunk {
		return protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   h.sess.ID,
			PCM16Base64: base64.StdEncoding.EncodeToString(f.PCM),
			SampleRate:  f.SampleRate,
		}
	}
	for i := 0; i < 5; i++ {
		h.inbound <- chunk(audio.SineFrame(16000, 100, 440, 0.5))
	}
	for i := 0; i < 20; i++ {
		h.inbound <- chunk(audio.SilentFrame(16000, 100))
	}

	result, _ := drainUntil[protocol.DispatchResult](t, h.outbound)
	if !result.Success {
		t.Fatalf("DispatchResult.Success = false, reason %q", result.FailReason)
	}
	if got := h.dispatcher.dispatched(); len(got) != 1 || got[0] != "backend/dev: restart the worker" {
		t.Fatalf("dispatched = %v", got)
	}

	close(h.inbound)
	if err := <-h.done; err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}
}

func TestPipelineCorrectionFailureDispatchesNothing(t *testing.T) {
	rewriter := &fakeRewriter{events: []CorrectionEvent{
		{Type: CorrectionPartial, Text: "depl"},
		{Type: CorrectionFailed, Code: "correction_timeout", Detail: "deadline exceeded"},
	}}
	h := startPipeline(t, session.DetectionConfig{Mode: "stop_phrase", StopPhrase: "go go go"}, rewriter)

	h.emitFinal(t, "deploy it go go go")

	errEvent, seen := drainUntil[protocol.ErrorEvent](t, h.outbound)
	if errEvent.Source != "correction" || errEvent.Code != "correction_timeout" {
		t.Fatalf("error event = %+v", errEvent)
	}
	for _, msg := range seen {
		if _, ok := msg.(protocol.CommandSent); ok {
			t.Fatalf("CommandSent emitted for a failed correction")
		}
	}
	if got := h.dispatcher.dispatched(); len(got) != 0 {
		t.Fatalf("dispatched = %v, want none", got)
	}

	close(h.inbound)
	if err := <-h.done; err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}
}

func TestPipelineDispatchFailureSurfaced(t *testing.T) {
	rewriter := &fakeRewriter{events: []CorrectionEvent{
		{Type: CorrectionSent, Text: "deploy the service"},
	}}
	h := startPipeline(t, session.DetectionConfig{Mode: "stop_phrase", StopPhrase: "go go go"}, rewriter)
	h.dispatcher.err = errors.New("hub unreachable")

	h.emitFinal(t, "deploy the service go go go")

	result, _ := drainUntil[protocol.DispatchResult](t, h.outbound)
	if result.Success {
		t.Fatalf("DispatchResult.Success = true, want failure surfaced")
	}
	if result.FailReason == "" {
		t.Fatalf("FailReason empty")
	}

	close(h.inbound)
	if err := <-h.done; err != nil {
		t.Fatalf("RunConnection() error = %v", err)
	}
}

func TestPipelineTranscriberErrorEndsConnection(t *testing.T) {
	h := startPipeline(t, session.DetectionConfig{Mode: "stop_phrase", StopPhrase: "go go go"}, &fakeRewriter{})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.mock.Emit(h.sess.ID, TokenEvent{Type: TokenError, Code: "transcriber_disconnected", Retryable: true}) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	errEvent, _ := drainUntil[protocol.ErrorEvent](t, h.outbound)
	if errEvent.Code != "transcriber_disconnected" || errEvent.Source != "transcription" {
		t.Fatalf("error event = %+v", errEvent)
	}
	if err := <-h.done; err == nil {
		t.Fatalf("RunConnection() = nil, want error after transcriber drop")
	}
}
