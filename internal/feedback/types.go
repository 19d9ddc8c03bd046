package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

type TaskState string

const (
	StateQueued  TaskState = "queued"
	StateRunning TaskState = "running"
	StateDone    TaskState = "done"
	StateFailed  TaskState = "failed"
)

func (s TaskState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Signal identifies one "unit of work finished" trigger from the
// session layer. Two signals with the same identity fields are the
// same trigger, however many times they are delivered.
type Signal struct {
	SessionRef string `json:"session_ref"`
	RoleRef    string `json:"role_ref"`
	ContextID  string `json:"context_id"`
}

func (s Signal) Validate() error {
	if strings.TrimSpace(s.SessionRef) == "" {
		return errors.New("session_ref is required")
	}
	if strings.TrimSpace(s.ContextID) == "" {
		return errors.New("context_id is required")
	}
	return nil
}

// TaskID derives the idempotency key for the signal: the hex SHA-256
// of the identity fields joined with a NUL separator, so no field
// concatenation can collide with another signal's.
func (s Signal) TaskID() string {
	h := sha256.Sum256([]byte(s.SessionRef + "\x00" + s.RoleRef + "\x00" + s.ContextID))
	return hex.EncodeToString(h[:])
}

// Task is one feedback job. Owned by the queue; only the worker that
// claims it mutates state.
type Task struct {
	ID         string     `json:"id"`
	SessionRef string     `json:"session_ref"`
	RoleRef    string     `json:"role_ref"`
	ContextID  string     `json:"context_id"`
	State      TaskState  `json:"state"`
	Error      string     `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// Message is the finished feedback payload handed to the broadcaster.
// Immutable once produced.
type Message struct {
	SessionRef  string
	RoleRef     string
	SummaryText string
	AudioWAV    []byte
	ProducedAt  time.Time
}
