// Interface for all agent drivers. A driver is the embedding boundary to
// the framework that authors agents: the worker owns scheduling and
// bookkeeping around an instance, never its internals.

package drivers

import (
	"context"
	"encoding/json"

	"github.com/agentdproject/agentd/api/models"
)

// Instance is one live agent built by a driver.
//
// The dispatch pool does not serialize calls against the same instance,
// implementations control their own reentrancy.
type Instance interface {
	// Invoke runs the named function with args and returns its serialized
	// result. A problem in the function itself (bad name, agent raised)
	// MUST come back as an error, the worker records it on the task rather
	// than crashing the dispatch thread.
	//
	// Invoke MUST monitor the context, call timeout is indicated by
	// cancelling it.
	Invoke(ctx context.Context, fn string, args json.RawMessage) (json.RawMessage, error)

	// Memory returns a snapshot of the instance's conversational memory.
	Memory(ctx context.Context) (json.RawMessage, error)

	// Snapshot serializes the full internal state for cloning. The snapshot
	// must be deep: mutating the clone built from it may not affect this
	// instance.
	Snapshot(ctx context.Context) (json.RawMessage, error)

	// Close releases any resources the instance owns.
	Close(ctx context.Context) error
}

// Driver builds instances from agent specs.
type Driver interface {
	// Spawn creates a new instance. When spec.Snapshot is set the instance
	// is restored from another agent's serialized state.
	Spawn(ctx context.Context, spec models.AgentSpec) (Instance, error)

	// Close shuts down the driver.
	Close() error
}

// Config is passed to a driver at construction.
type Config struct {
	ServerID string            `json:"server_id"`
	Options  map[string]string `json:"options,omitempty"`
}
