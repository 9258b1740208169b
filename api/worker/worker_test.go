package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/drivers/inproc"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/taskstore/memory"
)

func newWorker(t *testing.T, mut func(*models.Config)) *Worker {
	t.Helper()
	cfg := &models.Config{
		Host:        "127.0.0.1",
		Port:        8080,
		ServerID:    "test-worker",
		MaxPoolSize: 64,
		MaxExpire:   time.Hour,
		MaxTimeout:  5 * time.Second,
		NumWorkers:  2,
		QueueDepth:  32,
	}
	if mut != nil {
		mut(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	d, err := inproc.New(drivers.Config{ServerID: cfg.ServerID})
	if err != nil {
		t.Fatal(err)
	}
	w, err := New(cfg, d, memory.New(cfg.MaxTimeout))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close(context.Background()) })
	return w
}

func awaitTask(t *testing.T, w *Worker, taskID string) *models.Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		task, err := w.Poll(context.Background(), taskID)
		if err != nil {
			t.Fatal(err)
		}
		if task.Terminal() {
			return task
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never resolved", taskID)
	return nil
}

func TestCreateListCallScenario(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)

	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}
	ids := w.ListAgents(ctx)
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("expected [a1], got %v", ids)
	}

	// synchronous path returns the value directly
	res, err := w.Call(ctx, "a1", "echo", json.RawMessage(`"hi"`), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Deferred() || string(res.Value) != `"hi"` {
		t.Fatalf("expected immediate \"hi\", got %+v", res)
	}

	// asynchronous path returns a placeholder that resolves to the value
	res, err = w.Call(ctx, "a1", "echo", json.RawMessage(`"hi"`), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Deferred() {
		t.Fatalf("expected deferred result, got %+v", res)
	}
	task := awaitTask(t, w, res.TaskID)
	if task.Status != models.TaskStatusReady || string(task.Payload) != `"hi"` {
		t.Fatalf("expected ready \"hi\", got %+v", task)
	}

	// terminal reads are idempotent
	again, err := w.Poll(ctx, res.TaskID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != models.TaskStatusReady || string(again.Payload) != `"hi"` {
		t.Fatalf("terminal read changed: %+v", again)
	}
}

func TestCallMissingAgent(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)

	if _, err := w.Call(ctx, "ghost", "echo", nil, false); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
	// the async path rejects a missing agent synchronously too
	if _, err := w.Call(ctx, "ghost", "echo", nil, true); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
}

func TestCallMissingFunc(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)
	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Call(ctx, "a1", "", nil, false); err != models.ErrFuncsMissingName {
		t.Fatalf("expected ErrFuncsMissingName, got %v", err)
	}
	if _, err := w.Call(ctx, "a1", "no_such_fn", nil, false); err != models.ErrFuncsNotFound {
		t.Fatalf("expected ErrFuncsNotFound, got %v", err)
	}
}

func TestSyncCallTimeout(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, func(cfg *models.Config) {
		cfg.MaxTimeout = 50 * time.Millisecond
	})
	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}

	_, err := w.Call(ctx, "a1", "sleep", json.RawMessage(`{"ms": 5000}`), false)
	if err != models.ErrCallTimeout {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
}

func TestPollUnknownTask(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)

	if _, err := w.Poll(ctx, "no-such-task"); err != models.ErrTasksNotFound {
		t.Fatalf("expected ErrTasksNotFound, got %v", err)
	}
	if _, err := w.Poll(ctx, ""); err != models.ErrTasksMissingID {
		t.Fatalf("expected ErrTasksMissingID, got %v", err)
	}
}

func TestAgentMemoryAndClone(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)

	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Call(ctx, "a1", "chat", json.RawMessage(`"hello"`), false); err != nil {
		t.Fatal(err)
	}

	mem, err := w.AgentMemory(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(mem, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 memory entries, got %d", len(entries))
	}

	cloneID, err := w.CloneAgent(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	cloneMem, err := w.AgentMemory(ctx, cloneID)
	if err != nil {
		t.Fatal(err)
	}
	if string(cloneMem) != string(mem) {
		t.Fatalf("clone memory differs from source at clone time")
	}

	if _, err := w.AgentMemory(ctx, "ghost"); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
}

func TestSetModelConfigs(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)

	good := json.RawMessage(`{"gpt": {"model_type": "openai_chat", "model_name": "gpt-4"}}`)
	if err := w.SetModelConfigs(ctx, good); err != nil {
		t.Fatal(err)
	}
	cfg, ok := w.ModelConfig("gpt")
	if !ok {
		t.Fatal("expected gpt config to be registered")
	}
	var body map[string]string
	if err := json.Unmarshal(cfg, &body); err != nil {
		t.Fatal(err)
	}
	if body["model_type"] != "openai_chat" {
		t.Fatalf("unexpected config %s", cfg)
	}

	for _, bad := range []string{`[]`, `{}`, `{"x": {"no_type": 1}}`, `"nope"`} {
		if err := w.SetModelConfigs(ctx, json.RawMessage(bad)); err != models.ErrConfigsInvalid {
			t.Fatalf("expected ErrConfigsInvalid for %s, got %v", bad, err)
		}
	}
}

func TestInfo(t *testing.T) {
	ctx := context.Background()
	w := newWorker(t, nil)
	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}

	info := w.Info(ctx)
	if !info.OK || info.ServerID != "test-worker" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Agents != 1 {
		t.Fatalf("expected 1 agent, got %d", info.Agents)
	}
	if info.Goroutines <= 0 {
		t.Fatalf("expected goroutine count, got %d", info.Goroutines)
	}
}

func TestSyncCallCancelled(t *testing.T) {
	w := newWorker(t, nil)
	ctx := context.Background()
	if err := w.CreateAgent(ctx, "a1", nil, nil); err != nil {
		t.Fatal(err)
	}

	callCtx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := w.Call(callCtx, "a1", "sleep", json.RawMessage(`{"ms": 5000}`), false)
	if err != models.ErrCallCancelled {
		t.Fatalf("expected ErrCallCancelled, got %v", err)
	}
}
