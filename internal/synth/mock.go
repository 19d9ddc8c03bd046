package synth

import (
	"context"
	"sync"
	"time"
)

// MockSummarizer returns a fixed summary, or an error, and records call
// counts. For tests and hub-less local runs.
type MockSummarizer struct {
	mu      sync.Mutex
	calls   int
	Summary string
	Err     error
	Delay   time.Duration
}

func (m *MockSummarizer) Summarize(ctx context.Context, agentRef, roleRef, output string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.Summary != "" {
		return m.Summary, nil
	}
	return "Work finished for " + agentRef + ".", nil
}

func (m *MockSummarizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSynthesizer returns the text bytes as a stand-in payload.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls int
	Name  string
	Err   error
	Delay time.Duration
}

func (m *MockSynthesizer) Provider() string {
	if m.Name != "" {
		return m.Name
	}
	return "mock"
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return []byte(voiceID + "|" + text), nil
}

func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
