package synth

import "context"

// Summarizer condenses raw agent session output into a short spoken
// status update.
type Summarizer interface {
	Summarize(ctx context.Context, agentRef, roleRef, output string) (string, error)
}

// SpeechSynthesizer renders text into a WAV payload with the given
// provider voice.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
	Provider() string
}
