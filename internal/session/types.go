package session

import "time"

// DetectionConfig fixes the utterance finalization policy for one session.
// It is supplied once at create time and never changes afterwards.
type DetectionConfig struct {
	Mode               string  `json:"mode"`
	SilenceThresholdDb float64 `json:"silence_threshold_db"`
	SilenceDurationMs  int64   `json:"silence_duration_ms"`
	StopPhrase         string  `json:"stop_phrase,omitempty"`
}

// CreateRequest defines payload for creating a new operator session.
type CreateRequest struct {
	OperatorID string           `json:"operator_id"`
	Detection  *DetectionConfig `json:"detection,omitempty"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID       string          `json:"session_id"`
	OperatorID      string          `json:"operator_id"`
	Status          Status          `json:"status"`
	Detection       DetectionConfig `json:"detection"`
	StartedAt       time.Time       `json:"started_at"`
	LastActivityAt  time.Time       `json:"last_activity_at"`
	InactivityTTLMS int64           `json:"inactivity_ttl_ms"`
}
