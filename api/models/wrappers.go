package models

import "encoding/json"

// Request and response bodies for the API. Every response carries ok.

type AgentWrapper struct {
	AgentID  string          `json:"agent_id"`
	InitArgs json.RawMessage `json:"init_args,omitempty"`
	Source   json.RawMessage `json:"source,omitempty"`
}

type CallWrapper struct {
	Func string          `json:"func"`
	Args json.RawMessage `json:"args,omitempty"`
	// Async defers execution to the dispatch pool and returns a task id
	// instead of a value.
	Async bool `json:"async,omitempty"`
}

type MessageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type AgentListResponse struct {
	OK     bool     `json:"ok"`
	Agents []string `json:"agents"`
}

type CloneResponse struct {
	OK      bool   `json:"ok"`
	AgentID string `json:"agent_id"`
}

type MemoryResponse struct {
	OK     bool            `json:"ok"`
	Memory json.RawMessage `json:"memory"`
}

type CallResponse struct {
	OK     bool            `json:"ok"`
	Value  json.RawMessage `json:"value,omitempty"`
	TaskID string          `json:"task_id,omitempty"`
}

type TaskResponse struct {
	OK     bool            `json:"ok"`
	Status TaskStatus      `json:"status"`
	Value  json.RawMessage `json:"value,omitempty"`
	Error  string          `json:"error,omitempty"`
}
