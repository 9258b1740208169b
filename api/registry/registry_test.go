package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/drivers/inproc"
	"github.com/agentdproject/agentd/api/models"
)

func newRegistry(t *testing.T, maxSize int, maxIdle time.Duration) *Registry {
	t.Helper()
	d, err := inproc.New(drivers.Config{})
	if err != nil {
		t.Fatal(err)
	}
	r := New(d, maxSize, maxIdle)
	t.Cleanup(func() { r.Close(context.Background()) })
	return r
}

func mustCreate(t *testing.T, r *Registry, agentID string) {
	t.Helper()
	if err := r.Create(context.Background(), models.AgentSpec{AgentID: agentID}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	mustCreate(t, r, "a1")
	ids := r.List()
	if len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("expected [a1], got %v", ids)
	}

	if err := r.Delete(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if ids := r.List(); len(ids) != 0 {
		t.Fatalf("expected empty list, got %v", ids)
	}
}

func TestCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	mustCreate(t, r, "a1")
	err := r.Create(ctx, models.AgentSpec{AgentID: "a1"})
	if err != models.ErrAgentsAlreadyExists {
		t.Fatalf("expected ErrAgentsAlreadyExists, got %v", err)
	}
	// the existing agent is untouched
	if ids := r.List(); len(ids) != 1 || ids[0] != "a1" {
		t.Fatalf("expected [a1], got %v", ids)
	}
}

func TestCreateInvalidID(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	if err := r.Create(ctx, models.AgentSpec{AgentID: ""}); err != models.ErrAgentsMissingID {
		t.Fatalf("expected ErrAgentsMissingID, got %v", err)
	}
	if err := r.Create(ctx, models.AgentSpec{AgentID: "bad id"}); err != models.ErrAgentsInvalidID {
		t.Fatalf("expected ErrAgentsInvalidID, got %v", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	r := newRegistry(t, 8, time.Hour)
	if err := r.Delete(context.Background(), "missing"); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	mustCreate(t, r, "a1")
	mustCreate(t, r, "a2")
	mustCreate(t, r, "a3")

	if err := r.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	if ids := r.List(); len(ids) != 0 {
		t.Fatalf("expected empty registry, got %v", ids)
	}
}

func TestCloneMissing(t *testing.T) {
	r := newRegistry(t, 8, time.Hour)
	if _, err := r.Clone(context.Background(), "missing"); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
}

func TestCloneIndependentState(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	mustCreate(t, r, "src")
	inst, release, err := r.Borrow("src")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := inst.Invoke(ctx, "chat", json.RawMessage(`"original"`)); err != nil {
		t.Fatal(err)
	}
	release()

	cloneID, err := r.Clone(ctx, "src")
	if err != nil {
		t.Fatal(err)
	}
	if cloneID == "src" || cloneID == "" {
		t.Fatalf("expected fresh clone id, got %q", cloneID)
	}
	ids := r.List()
	if len(ids) != 2 {
		t.Fatalf("expected 2 agents, got %v", ids)
	}

	// mutate the clone, source memory must not move
	cloneInst, cloneRelease, err := r.Borrow(cloneID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cloneInst.Invoke(ctx, "chat", json.RawMessage(`"mutation"`)); err != nil {
		t.Fatal(err)
	}
	cloneRelease()

	srcInst, srcRelease, err := r.Inspect("src")
	if err != nil {
		t.Fatal(err)
	}
	defer srcRelease()
	mem, err := srcInst.Memory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(mem, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("source memory changed by clone mutation, got %d entries", len(entries))
	}
}

func TestCapacityNoIdleCandidate(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 1, time.Hour)

	mustCreate(t, r, "a1")
	err := r.Create(ctx, models.AgentSpec{AgentID: "a2"})
	if err != models.ErrAgentsAtCapacity {
		t.Fatalf("expected ErrAgentsAtCapacity, got %v", err)
	}
}

func TestCapacityEvictsExpiredIdle(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 1, 20*time.Millisecond)

	mustCreate(t, r, "a1")
	time.Sleep(50 * time.Millisecond)

	if err := r.Create(ctx, models.AgentSpec{AgentID: "a2"}); err != nil {
		t.Fatalf("expected eviction to make room, got %v", err)
	}
	ids := r.List()
	if len(ids) != 1 || ids[0] != "a2" {
		t.Fatalf("expected [a2], got %v", ids)
	}
}

func TestEvictionSkipsInFlight(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 1, 20*time.Millisecond)

	mustCreate(t, r, "a1")
	_, release, err := r.Borrow("a1")
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	// a1 is idle-expired but has a call in flight, so it cannot be evicted
	if err := r.Create(ctx, models.AgentSpec{AgentID: "a2"}); err != models.ErrAgentsAtCapacity {
		t.Fatalf("expected ErrAgentsAtCapacity, got %v", err)
	}

	release() // touch resets the idle clock
	time.Sleep(50 * time.Millisecond)
	if err := r.Create(ctx, models.AgentSpec{AgentID: "a2"}); err != nil {
		t.Fatalf("expected create to succeed after release, got %v", err)
	}
}

func TestDeleteWithCallInFlight(t *testing.T) {
	ctx := context.Background()
	r := newRegistry(t, 8, time.Hour)

	mustCreate(t, r, "a1")
	inst, release, err := r.Borrow("a1")
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Delete(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	if ids := r.List(); len(ids) != 0 {
		t.Fatalf("agent still listed after delete: %v", ids)
	}

	// the in-flight call is allowed to finish against the borrowed instance
	out, err := inst.Invoke(ctx, "echo", json.RawMessage(`"still here"`))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"still here"` {
		t.Fatalf("unexpected result %s", out)
	}
	release()

	// a new agent can reuse the id immediately
	mustCreate(t, r, "a1")
}

func TestBorrowMissing(t *testing.T) {
	r := newRegistry(t, 8, time.Hour)
	if _, _, err := r.Borrow("missing"); err != models.ErrAgentsNotFound {
		t.Fatalf("expected ErrAgentsNotFound, got %v", err)
	}
}

// blockingInstance parks Snapshot until unblocked and remembers Close, so
// tests can overlap a snapshot with other registry activity.
type blockingInstance struct {
	snapStarted chan struct{}
	snapUnblock chan struct{}

	mu     sync.Mutex
	closed bool
}

func (i *blockingInstance) Invoke(ctx context.Context, fn string, args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}

func (i *blockingInstance) Memory(ctx context.Context) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (i *blockingInstance) Snapshot(ctx context.Context) (json.RawMessage, error) {
	if i.snapStarted != nil {
		close(i.snapStarted)
		i.snapStarted = nil
	}
	select {
	case <-i.snapUnblock:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, errors.New("snapshot on closed instance")
	}
	return json.RawMessage(`{}`), nil
}

func (i *blockingInstance) Close(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	return nil
}

type blockingDriver struct {
	src *blockingInstance
}

func (d *blockingDriver) Spawn(ctx context.Context, spec models.AgentSpec) (drivers.Instance, error) {
	if spec.Snapshot == nil {
		return d.src, nil
	}
	unblocked := make(chan struct{})
	close(unblocked)
	return &blockingInstance{snapUnblock: unblocked}, nil
}

func (d *blockingDriver) Close() error { return nil }

func TestEvictionSkipsCloneInProgress(t *testing.T) {
	ctx := context.Background()
	src := &blockingInstance{
		snapStarted: make(chan struct{}),
		snapUnblock: make(chan struct{}),
	}
	r := New(&blockingDriver{src: src}, 8, 20*time.Millisecond)
	t.Cleanup(func() { r.Close(context.Background()) })

	if err := r.Create(ctx, models.AgentSpec{AgentID: "src"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond) // src is now idle past expiry

	done := make(chan struct{})
	var cloneID string
	var cloneErr error
	go func() {
		defer close(done)
		cloneID, cloneErr = r.Clone(ctx, "src")
	}()
	<-src.snapStarted

	// the eviction pass a concurrent create performs must not select a
	// source that is mid snapshot
	r.mu.Lock()
	victims := r.evictLocked(time.Now(), len(r.handles))
	r.mu.Unlock()
	for _, v := range victims {
		r.closeDetached(v)
	}
	if len(victims) != 0 {
		t.Fatalf("source evicted while clone was snapshotting it")
	}

	close(src.snapUnblock)
	<-done
	if cloneErr != nil {
		t.Fatalf("clone failed: %v", cloneErr)
	}
	ids := r.List()
	if len(ids) != 2 || ids[0] != cloneID && ids[1] != cloneID {
		t.Fatalf("expected src and clone, got %v", ids)
	}
}
