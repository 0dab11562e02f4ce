package queue

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle position of a job.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal returns true if no further state transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is a unit of queued work. Payload is captured at enqueue time and
// never changes; Result and FailureReason are mutually exclusive and each
// set at most once, when the job reaches its terminal state.
type Job struct {
	ID            string          `json:"id"`
	Queue         string          `json:"queue"`
	Payload       json.RawMessage `json:"payload"`
	State         State           `json:"state"`
	Progress      int             `json:"progress"`
	Result        json.RawMessage `json:"result,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Attempts      int             `json:"attempts"`
	NotBefore     time.Time       `json:"not_before"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Patch is the set of fields a transition may update. Nil fields are left
// untouched.
type Patch struct {
	Attempts      *int
	Progress      *int
	Result        json.RawMessage
	FailureReason *string
	NotBefore     *time.Time
}
