package voice

import (
	"context"

	"github.com/hungson175/teamvoice/internal/audio"
)

type TokenType string

const (
	TokenInterim TokenType = "interim"
	TokenFinal   TokenType = "final"
	TokenError   TokenType = "error"
)

// TokenEvent is one event from the streaming transcription service.
// Interim tokens are display-only; only final tokens accumulate into
// the transcript the detector finalizes on.
type TokenEvent struct {
	Type      TokenType
	Text      string
	Code      string
	Detail    string
	Retryable bool
	TSMs      int64
}

// StreamConfig is the session-start message content for the transcriber.
type StreamConfig struct {
	SampleRate int
	Encoding   string
	Model      string
	Language   string
}

type TranscriptStream interface {
	SendFrame(ctx context.Context, frame audio.Frame) error
	Close() error
}

// Transcriber maintains one duplex connection per operator session.
// A dropped connection is surfaced as a TokenError event and the event
// channel closes; reconnecting is the caller's decision.
type Transcriber interface {
	StartStream(ctx context.Context, sessionID string, cfg StreamConfig) (TranscriptStream, <-chan TokenEvent, error)
}
