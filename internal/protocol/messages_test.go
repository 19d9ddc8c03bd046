package protocol

import (
	"errors"
	"testing"
)

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"client_audio_chunk","session_id":"s1","seq":3,"pcm16_base64":"AAAA","sample_rate":16000,"ts_ms":12}`)
	parsed, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	chunk, ok := parsed.(ClientAudioChunk)
	if !ok {
		t.Fatalf("parsed type = %T, want ClientAudioChunk", parsed)
	}
	if chunk.Seq != 3 || chunk.SampleRate != 16000 {
		t.Fatalf("chunk = %+v, want seq 3 rate 16000", chunk)
	}
}

func TestParseClientMessageRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"type":"client_audio_chunk","session_id":"","pcm16_base64":"AAAA","sample_rate":16000}`,
		`{"type":"client_audio_chunk","session_id":"s1","pcm16_base64":"","sample_rate":16000}`,
		`{"type":"client_audio_chunk","session_id":"s1","pcm16_base64":"AAAA","sample_rate":0}`,
		`{"type":"client_control","session_id":"s1","action":""}`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) error = nil, want validation error", raw)
		}
	}
}

func TestParseClientMessageUnsupportedType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"feedback_message"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestParseObserverMessage(t *testing.T) {
	msg, err := ParseObserverMessage([]byte(`{"type":"observer_control","action":"pause"}`))
	if err != nil {
		t.Fatalf("ParseObserverMessage() error = %v", err)
	}
	if msg.Action != "pause" {
		t.Fatalf("Action = %q, want pause", msg.Action)
	}
}

func TestParseObserverMessageRejectsUnknownAction(t *testing.T) {
	if _, err := ParseObserverMessage([]byte(`{"type":"observer_control","action":"drop"}`)); err == nil {
		t.Fatalf("ParseObserverMessage() error = nil, want invalid action error")
	}
}
