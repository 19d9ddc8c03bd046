package voice

import (
	"context"
	"sync"

	"github.com/hungson175/teamvoice/internal/audio"
)

// MockTranscriber is a Transcriber for local development and tests. It
// ignores audio content; token events are injected by the caller via
// Emit and attributed to the session's stream.
type MockTranscriber struct {
	mu      sync.Mutex
	streams map[string]*mockStream
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{streams: make(map[string]*mockStream)}
}

func (m *MockTranscriber) StartStream(ctx context.Context, sessionID string, cfg StreamConfig) (TranscriptStream, <-chan TokenEvent, error) {
	s := &mockStream{tokens: make(chan TokenEvent, 64)}
	m.mu.Lock()
	m.streams[sessionID] = s
	m.mu.Unlock()
	return s, s.tokens, nil
}

// Emit delivers one token event to the session's stream. It reports
// false when the session has no open stream.
func (m *MockTranscriber) Emit(sessionID string, ev TokenEvent) bool {
	m.mu.Lock()
	s := m.streams[sessionID]
	m.mu.Unlock()
	if s == nil {
		return false
	}
	return s.emit(ev)
}

// FramesSent reports how many frames the session's stream has received.
func (m *MockTranscriber) FramesSent(sessionID string) int {
	m.mu.Lock()
	s := m.streams[sessionID]
	m.mu.Unlock()
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

type mockStream struct {
	tokens    chan TokenEvent
	mu        sync.Mutex
	frames    int
	closed    bool
	closeOnce sync.Once
}

func (s *mockStream) SendFrame(ctx context.Context, frame audio.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	s.frames++
	return nil
}

func (s *mockStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.tokens)
	})
	return nil
}

func (s *mockStream) emit(ev TokenEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.tokens <- ev:
		return true
	default:
		return false
	}
}
