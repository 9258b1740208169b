// Package inproc is the reference agent driver: a purely in-process agent
// with a conversational memory and a scratch key/value state. It backs the
// default worker configuration and the test suites.
package inproc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/models"
)

type driver struct{}

// New returns the in-process driver.
func New(cfg drivers.Config) (drivers.Driver, error) {
	return &driver{}, nil
}

type memoryEntry struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// snapshot is the serialized form of an instance, also the clone format.
type snapshot struct {
	InitArgs json.RawMessage            `json:"init_args,omitempty"`
	Memory   []memoryEntry              `json:"memory"`
	State    map[string]json.RawMessage `json:"state"`
}

type instance struct {
	mu       sync.Mutex
	initArgs json.RawMessage
	memory   []memoryEntry
	state    map[string]json.RawMessage
}

func (d *driver) Spawn(ctx context.Context, spec models.AgentSpec) (drivers.Instance, error) {
	inst := &instance{
		initArgs: spec.InitArgs,
		state:    make(map[string]json.RawMessage),
	}
	if len(spec.Snapshot) != 0 {
		var snap snapshot
		if err := json.Unmarshal(spec.Snapshot, &snap); err != nil {
			return nil, fmt.Errorf("bad agent snapshot: %w", err)
		}
		inst.initArgs = snap.InitArgs
		inst.memory = snap.Memory
		if snap.State != nil {
			inst.state = snap.State
		}
	}
	return inst, nil
}

func (d *driver) Close() error { return nil }

func (i *instance) Invoke(ctx context.Context, fn string, args json.RawMessage) (json.RawMessage, error) {
	switch fn {
	case "echo":
		if args == nil {
			return json.RawMessage(`null`), nil
		}
		return args, nil
	case "chat":
		return i.chat(args)
	case "set":
		return i.set(args)
	case "get":
		return i.get(args)
	case "sleep":
		return i.sleep(ctx, args)
	case "fail":
		return nil, fmt.Errorf("agent failed on purpose: %s", args)
	}
	return nil, models.ErrFuncsNotFound
}

// chat records the observation and answers with it, enough of a
// conversation for exercising memory and clones.
func (i *instance) chat(args json.RawMessage) (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.memory = append(i.memory,
		memoryEntry{Role: "user", Content: args},
		memoryEntry{Role: "assistant", Content: args},
	)
	return args, nil
}

func (i *instance) set(args json.RawMessage) (json.RawMessage, error) {
	var kv struct {
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(args, &kv); err != nil || kv.Key == "" {
		return nil, fmt.Errorf("set wants {key, value}, got %s", args)
	}
	i.mu.Lock()
	i.state[kv.Key] = kv.Value
	i.mu.Unlock()
	return json.RawMessage(`true`), nil
}

func (i *instance) get(args json.RawMessage) (json.RawMessage, error) {
	var kv struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(args, &kv); err != nil || kv.Key == "" {
		return nil, fmt.Errorf("get wants {key}, got %s", args)
	}
	i.mu.Lock()
	v, ok := i.state[kv.Key]
	i.mu.Unlock()
	if !ok {
		return json.RawMessage(`null`), nil
	}
	return v, nil
}

func (i *instance) sleep(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in struct {
		Ms int `json:"ms"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("sleep wants {ms}, got %s", args)
	}
	select {
	case <-time.After(time.Duration(in.Ms) * time.Millisecond):
		return json.RawMessage(`true`), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (i *instance) Memory(ctx context.Context) (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.memory == nil {
		return json.RawMessage(`[]`), nil
	}
	return json.Marshal(i.memory)
}

func (i *instance) Snapshot(ctx context.Context) (json.RawMessage, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	snap := snapshot{
		InitArgs: i.initArgs,
		Memory:   append([]memoryEntry(nil), i.memory...),
		State:    make(map[string]json.RawMessage, len(i.state)),
	}
	for k, v := range i.state {
		snap.State[k] = v
	}
	return json.Marshal(&snap)
}

func (i *instance) Close(ctx context.Context) error { return nil }

func init() {
	drivers.Register("inproc", New)
}
