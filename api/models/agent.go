package models

import (
	"encoding/json"
	"time"
)

const maxAgentID = 128

// Agent is the registry-visible metadata of one live agent instance. The
// instance itself (conversational memory, business logic) lives behind the
// drivers boundary.
type Agent struct {
	ID         string    `json:"agent_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// ValidateAgentID checks a caller supplied agent id. Generated ids (clones)
// always pass.
func ValidateAgentID(id string) APIError {
	if id == "" {
		return ErrAgentsMissingID
	}
	if len(id) > maxAgentID {
		return ErrAgentsInvalidID
	}
	for _, c := range id {
		if (c < '0' || '9' < c) && (c < 'A' || 'Z' < c) && (c < 'a' || 'z' < c) && c != '_' && c != '-' && c != '.' {
			return ErrAgentsInvalidID
		}
	}
	return nil
}

// AgentSpec carries everything needed to build an agent instance.
type AgentSpec struct {
	AgentID  string          `json:"agent_id"`
	InitArgs json.RawMessage `json:"init_args,omitempty"`
	Source   json.RawMessage `json:"source,omitempty"`
	// Snapshot is set when the instance is built from a clone of another
	// agent's state rather than from scratch.
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}
