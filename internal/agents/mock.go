package agents

import (
	"context"
	"sync"
)

// SentCommand records one SendText call against the mock layer.
type SentCommand struct {
	SessionRef string
	RoleRef    string
	Text       string
}

// MockSessionLayer is an in-memory SessionLayer for tests and local
// runs without a hub.
type MockSessionLayer struct {
	mu       sync.Mutex
	sessions []AgentSession
	outputs  map[string]string
	sent     []SentCommand

	SendErr    error
	CaptureErr error
	ListErr    error
}

func NewMockSessionLayer() *MockSessionLayer {
	return &MockSessionLayer{outputs: make(map[string]string)}
}

func (m *MockSessionLayer) AddSession(s AgentSession) {
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
}

func (m *MockSessionLayer) SetOutput(sessionRef, roleRef, output string) {
	m.mu.Lock()
	m.outputs[sessionRef+"/"+roleRef] = output
	m.mu.Unlock()
}

func (m *MockSessionLayer) Sent() []SentCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentCommand, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *MockSessionLayer) ListSessions(ctx context.Context) ([]AgentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]AgentSession, len(m.sessions))
	copy(out, m.sessions)
	return out, nil
}

func (m *MockSessionLayer) SendText(ctx context.Context, sessionRef, roleRef, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, SentCommand{SessionRef: sessionRef, RoleRef: roleRef, Text: text})
	return nil
}

func (m *MockSessionLayer) CaptureOutput(ctx context.Context, sessionRef, roleRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CaptureErr != nil {
		return "", m.CaptureErr
	}
	return m.outputs[sessionRef+"/"+roleRef], nil
}
