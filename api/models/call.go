package models

import "encoding/json"

// CallResult is the outcome of CallAgentFunc. Exactly one of Value or TaskID
// is set: Value for a synchronous call that ran to completion, TaskID for a
// call deferred to the dispatch pool.
type CallResult struct {
	Value  json.RawMessage `json:"value,omitempty"`
	TaskID string          `json:"task_id,omitempty"`
}

// Deferred reports whether the result is a placeholder to be polled.
func (r *CallResult) Deferred() bool { return r.TaskID != "" }
