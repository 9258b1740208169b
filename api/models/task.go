package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of an asynchronous call result.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusReady   TaskStatus = "ready"
	TaskStatusFailed  TaskStatus = "failed"

	// TaskStatusExpired is never stored, it only marks a poll response for
	// an id the store no longer knows.
	TaskStatusExpired TaskStatus = "expired"
)

// Task is the placeholder record for one asynchronous call. A task moves
// from pending to exactly one of ready or failed and is immutable after
// that.
type Task struct {
	ID        string          `json:"task_id"`
	Status    TaskStatus      `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Terminal reports whether the task reached its final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusReady || t.Status == TaskStatusFailed
}

// Clone returns a deep copy, so store readers can never mutate a stored
// record.
func (t *Task) Clone() *Task {
	c := *t
	if t.Payload != nil {
		c.Payload = make(json.RawMessage, len(t.Payload))
		copy(c.Payload, t.Payload)
	}
	return &c
}
