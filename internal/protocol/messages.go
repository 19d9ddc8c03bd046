package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Operator socket, client to server.
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientControl    MessageType = "client_control"

	// Operator socket, server to client.
	TypeTranscriptPartial MessageType = "transcript_partial"
	TypeTranscriptFinal   MessageType = "transcript_final"
	TypeUtteranceFinal    MessageType = "utterance_final"
	TypeCorrectionDelta   MessageType = "correction_delta"
	TypeCommandSent       MessageType = "command_sent"
	TypeDispatchResult    MessageType = "dispatch_result"
	TypeSystemEvent       MessageType = "system_event"
	TypeErrorEvent        MessageType = "error_event"

	// Observer socket.
	TypeFeedbackMessage MessageType = "feedback_message"
	TypeObserverControl MessageType = "observer_control"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type TranscriptPartial struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type TranscriptFinal struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

type UtteranceFinal struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
	Method    string      `json:"method"`
	TSMs      int64       `json:"ts_ms"`
}

type CorrectionDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	TextDelta string      `json:"text_delta"`
}

type CommandSent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Text      string      `json:"text"`
}

type DispatchResult struct {
	Type       MessageType `json:"type"`
	SessionID  string      `json:"session_id"`
	TurnID     string      `json:"turn_id"`
	AgentRef   string      `json:"agent_ref"`
	RoleRef    string      `json:"role_ref"`
	Success    bool        `json:"success"`
	FailReason string      `json:"fail_reason,omitempty"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// FeedbackMessage is pushed to every subscribed observer when a feedback
// job finishes. Audio is a base64 WAV payload.
type FeedbackMessage struct {
	Type           MessageType `json:"type"`
	AgentRef       string      `json:"agent_ref"`
	RoleRef        string      `json:"role_ref"`
	SummaryText    string      `json:"summary_text"`
	AudioWAVBase64 string      `json:"audio_wav_base64"`
	TSMs           int64       `json:"ts_ms"`
}

// ObserverControl suspends or resumes delivery to one observer connection.
type ObserverControl struct {
	Type   MessageType `json:"type"`
	Action string      `json:"action"`
}

// ParseClientMessage decodes an operator-socket client frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// ParseObserverMessage decodes an observer-socket client frame.
func ParseObserverMessage(raw []byte) (ObserverControl, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ObserverControl{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != TypeObserverControl {
		return ObserverControl{}, ErrUnsupportedType
	}
	var msg ObserverControl
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ObserverControl{}, err
	}
	switch msg.Action {
	case "pause", "resume":
		return msg, nil
	default:
		return ObserverControl{}, fmt.Errorf("invalid observer_control action %q", msg.Action)
	}
}
