package inproc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/models"
)

func spawn(t *testing.T) drivers.Instance {
	t.Helper()
	d, err := New(drivers.Config{})
	if err != nil {
		t.Fatal(err)
	}
	inst, err := d.Spawn(context.Background(), models.AgentSpec{AgentID: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	return inst
}

func TestEcho(t *testing.T) {
	inst := spawn(t)
	out, err := inst.Invoke(context.Background(), "echo", json.RawMessage(`"hi"`))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"hi"` {
		t.Fatalf("expected \"hi\", got %s", out)
	}
}

func TestUnknownFunc(t *testing.T) {
	inst := spawn(t)
	_, err := inst.Invoke(context.Background(), "does_not_exist", nil)
	if err != models.ErrFuncsNotFound {
		t.Fatalf("expected ErrFuncsNotFound, got %v", err)
	}
}

func TestChatFillsMemory(t *testing.T) {
	ctx := context.Background()
	inst := spawn(t)

	if _, err := inst.Invoke(ctx, "chat", json.RawMessage(`"hello"`)); err != nil {
		t.Fatal(err)
	}
	mem, err := inst.Memory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(mem, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 memory entries, got %d", len(entries))
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	ctx := context.Background()
	d, err := New(drivers.Config{})
	if err != nil {
		t.Fatal(err)
	}

	src, err := d.Spawn(ctx, models.AgentSpec{AgentID: "src"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := src.Invoke(ctx, "chat", json.RawMessage(`"before"`)); err != nil {
		t.Fatal(err)
	}

	snap, err := src.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	clone, err := d.Spawn(ctx, models.AgentSpec{AgentID: "clone", Snapshot: snap})
	if err != nil {
		t.Fatal(err)
	}

	// mutating the clone must not leak into the source
	if _, err := clone.Invoke(ctx, "chat", json.RawMessage(`"after"`)); err != nil {
		t.Fatal(err)
	}

	srcMem, _ := src.Memory(ctx)
	cloneMem, _ := clone.Memory(ctx)
	var srcEntries, cloneEntries []json.RawMessage
	json.Unmarshal(srcMem, &srcEntries)
	json.Unmarshal(cloneMem, &cloneEntries)

	if len(srcEntries) != 2 {
		t.Fatalf("source memory changed, got %d entries", len(srcEntries))
	}
	if len(cloneEntries) != 4 {
		t.Fatalf("expected 4 clone entries, got %d", len(cloneEntries))
	}
}

func TestSleepHonorsContext(t *testing.T) {
	inst := spawn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := inst.Invoke(ctx, "sleep", json.RawMessage(`{"ms": 5000}`))
	if err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}
