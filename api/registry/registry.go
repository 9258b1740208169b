// Package registry owns the set of live agent handles. It enforces the
// worker's capacity bound and the idle expiry policy, and serializes
// structural changes (create/clone/delete) per agent id.
package registry

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/id"
	"github.com/agentdproject/agentd/api/models"
	"github.com/sirupsen/logrus"
)

type Registry struct {
	driver  drivers.Driver
	maxSize int
	maxIdle time.Duration

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type handle struct {
	spec models.AgentSpec
	inst drivers.Instance

	// all fields below are guarded by the registry mutex
	ready     bool // false while create is still in flight
	createdAt time.Time
	lastUsed  time.Time
	inflight  int
	// detached handles are gone from the map but still have calls in
	// flight, the last release closes the instance.
	detached bool

	// structMu serializes clone against delete on this id so a clone can
	// never observe a half torn down source.
	structMu sync.Mutex
}

// New builds a registry on the given driver and starts the background
// eviction sweep.
func New(driver drivers.Driver, maxSize int, maxIdle time.Duration) *Registry {
	r := &Registry{
		driver:  driver,
		maxSize: maxSize,
		maxIdle: maxIdle,
		handles: make(map[string]*handle),
		stop:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.sweep()
	return r
}

func (r *Registry) sweep() {
	defer r.wg.Done()

	interval := r.maxIdle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.mu.Lock()
			victims := r.evictLocked(time.Now(), len(r.handles))
			r.mu.Unlock()
			for _, v := range victims {
				r.closeDetached(v)
			}
		}
	}
}

// evictLocked removes up to need expired idle agents, oldest idle first.
// Agents with calls in flight are never evicted. Caller holds r.mu; returned
// victims must be closed via closeDetached after the lock is dropped.
func (r *Registry) evictLocked(now time.Time, need int) []*handle {
	if need <= 0 {
		return nil
	}
	var candidates []*handle
	for _, h := range r.handles {
		if h.ready && !h.detached && h.inflight == 0 && now.Sub(h.lastUsed) > r.maxIdle {
			candidates = append(candidates, h)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastUsed.Before(candidates[j].lastUsed)
	})
	if len(candidates) > need {
		candidates = candidates[:need]
	}
	for _, h := range candidates {
		h.detached = true
		delete(r.handles, h.spec.AgentID)
	}
	return candidates
}

func (r *Registry) closeDetached(h *handle) {
	logrus.WithFields(logrus.Fields{"agent_id": h.spec.AgentID}).Info("evicting idle agent")
	if err := h.inst.Close(context.Background()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"agent_id": h.spec.AgentID}).Error("error closing evicted agent")
	}
}

// Create inserts a new agent. It fails with ErrAgentsAlreadyExists for a
// duplicate id and with ErrAgentsAtCapacity when the registry is full and no
// idle agent is past expiry. Candidate selection and the capacity check are
// one atomic step under the registry mutex.
func (r *Registry) Create(ctx context.Context, spec models.AgentSpec) error {
	if apiErr := models.ValidateAgentID(spec.AgentID); apiErr != nil {
		return apiErr
	}

	h := &handle{spec: spec}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return models.ErrWorkerShutdown
	}
	if _, ok := r.handles[spec.AgentID]; ok {
		r.mu.Unlock()
		return models.ErrAgentsAlreadyExists
	}
	var victims []*handle
	if len(r.handles) >= r.maxSize {
		victims = r.evictLocked(time.Now(), len(r.handles)-r.maxSize+1)
		if len(r.handles) >= r.maxSize {
			r.mu.Unlock()
			return models.ErrAgentsAtCapacity
		}
	}
	// reserve the id so a concurrent create of the same id fails fast, the
	// agent only becomes visible to calls once ready
	r.handles[spec.AgentID] = h
	r.mu.Unlock()

	for _, v := range victims {
		r.closeDetached(v)
	}

	inst, err := r.driver.Spawn(ctx, spec)

	r.mu.Lock()
	if err != nil {
		delete(r.handles, spec.AgentID)
		r.mu.Unlock()
		return models.NewAPIError(http.StatusBadRequest, err)
	}
	now := time.Now()
	h.inst = inst
	h.ready = true
	h.createdAt = now
	h.lastUsed = now
	r.mu.Unlock()
	return nil
}

// Delete removes the agent. An in-flight call is allowed to finish, the
// instance is closed once the last call releases it.
func (r *Registry) Delete(ctx context.Context, agentID string) error {
	r.mu.Lock()
	h, ok := r.handles[agentID]
	if !ok || !h.ready {
		r.mu.Unlock()
		return models.ErrAgentsNotFound
	}
	r.mu.Unlock()

	h.structMu.Lock()
	defer h.structMu.Unlock()

	r.mu.Lock()
	if cur, ok := r.handles[agentID]; !ok || cur != h {
		r.mu.Unlock()
		return models.ErrAgentsNotFound // lost the race to another delete
	}
	delete(r.handles, agentID)
	h.detached = true
	busy := h.inflight > 0
	r.mu.Unlock()

	if busy {
		return nil
	}
	return h.inst.Close(ctx)
}

// DeleteAll empties the registry best-effort: the first error is reported
// but remaining agents are still deleted.
func (r *Registry) DeleteAll(ctx context.Context) error {
	ids := r.List()
	var first error
	for _, agentID := range ids {
		err := r.Delete(ctx, agentID)
		if err != nil && err != models.ErrAgentsNotFound {
			logrus.WithError(err).WithFields(logrus.Fields{"agent_id": agentID}).Error("error deleting agent, continuing")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Clone deep-copies the source agent's state into a freshly spawned agent
// under a new generated id. The source cannot be deleted mid clone.
func (r *Registry) Clone(ctx context.Context, srcID string) (string, error) {
	r.mu.Lock()
	h, ok := r.handles[srcID]
	if !ok || !h.ready {
		r.mu.Unlock()
		return "", models.ErrAgentsNotFound
	}
	r.mu.Unlock()

	h.structMu.Lock()
	r.mu.Lock()
	if cur, ok := r.handles[srcID]; !ok || cur != h {
		r.mu.Unlock()
		h.structMu.Unlock()
		return "", models.ErrAgentsNotFound
	}
	// hold a borrow across the snapshot, the sweep only honors inflight and
	// would otherwise evict an idle-expired source mid snapshot
	h.inflight++
	r.mu.Unlock()

	snap, err := h.inst.Snapshot(ctx)

	r.mu.Lock()
	h.inflight--
	r.mu.Unlock()
	h.structMu.Unlock()
	if err != nil {
		return "", models.NewAPIError(http.StatusInternalServerError, err)
	}

	newID := id.New().String()
	spec := models.AgentSpec{
		AgentID:  newID,
		InitArgs: h.spec.InitArgs,
		Source:   h.spec.Source,
		Snapshot: snap,
	}
	if err := r.Create(ctx, spec); err != nil {
		return "", err
	}
	return newID, nil
}

// List returns a sorted snapshot of live agent ids.
func (r *Registry) List() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.handles))
	for agentID, h := range r.handles {
		if h.ready {
			ids = append(ids, agentID)
		}
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Size returns the number of live agents.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Borrow checks out the agent's instance for one function call, bumping the
// in-flight count so eviction skips it. The returned release func must be
// called when the call finishes; it refreshes last_used_at.
func (r *Registry) Borrow(agentID string) (drivers.Instance, func(), error) {
	return r.checkout(agentID, true)
}

// Inspect is Borrow without the usage touch, for read-only access like
// memory snapshots.
func (r *Registry) Inspect(agentID string) (drivers.Instance, func(), error) {
	return r.checkout(agentID, false)
}

func (r *Registry) checkout(agentID string, touch bool) (drivers.Instance, func(), error) {
	r.mu.Lock()
	h, ok := r.handles[agentID]
	if !ok || !h.ready {
		r.mu.Unlock()
		return nil, nil, models.ErrAgentsNotFound
	}
	h.inflight++
	inst := h.inst
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		h.inflight--
		if touch {
			h.lastUsed = time.Now()
		}
		closeNow := h.detached && h.inflight == 0
		r.mu.Unlock()
		if closeNow {
			// agent was deleted mid call, result is discarded by whoever
			// holds the task
			if err := h.inst.Close(context.Background()); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{"agent_id": agentID}).Error("error closing deleted agent")
			}
		}
	}
	return inst, release, nil
}

// Close stops the sweep and tears down all agents.
func (r *Registry) Close(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	return r.DeleteAll(ctx)
}
