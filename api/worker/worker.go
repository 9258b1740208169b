// Package worker is the core that ties the agent registry, the dispatch
// pool and the result store together and implements the call protocol on
// top of them.
package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/dispatch"
	"github.com/agentdproject/agentd/api/drivers"
	"github.com/agentdproject/agentd/api/id"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/registry"
	"github.com/agentdproject/agentd/api/taskstore"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

type Worker struct {
	cfg      *models.Config
	driver   drivers.Driver
	registry *registry.Registry
	store    taskstore.Store
	pool     *dispatch.Pool

	configsMu    sync.RWMutex
	modelConfigs map[string]json.RawMessage

	startedAt time.Time
	proc      *process.Process
}

// New wires a worker from its three owned components. The config must have
// been validated.
func New(cfg *models.Config, driver drivers.Driver, store taskstore.Store) (*Worker, error) {
	reg := registry.New(driver, cfg.MaxPoolSize, cfg.MaxExpire)
	w := &Worker{
		cfg:          cfg,
		driver:       driver,
		registry:     reg,
		store:        store,
		pool:         dispatch.NewPool(reg, store, cfg.NumWorkers, cfg.QueueDepth, cfg.MaxTimeout),
		modelConfigs: make(map[string]json.RawMessage),
		startedAt:    time.Now(),
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		w.proc = proc
	}
	return w, nil
}

// CreateAgent registers a new agent under the caller chosen id.
func (w *Worker) CreateAgent(ctx context.Context, agentID string, initArgs, source json.RawMessage) error {
	return w.registry.Create(ctx, models.AgentSpec{
		AgentID:  agentID,
		InitArgs: initArgs,
		Source:   source,
	})
}

func (w *Worker) DeleteAgent(ctx context.Context, agentID string) error {
	return w.registry.Delete(ctx, agentID)
}

func (w *Worker) DeleteAllAgents(ctx context.Context) error {
	return w.registry.DeleteAll(ctx)
}

func (w *Worker) CloneAgent(ctx context.Context, agentID string) (string, error) {
	return w.registry.Clone(ctx, agentID)
}

func (w *Worker) ListAgents(ctx context.Context) []string {
	return w.registry.List()
}

// AgentMemory returns the agent's conversational memory snapshot without
// counting as usage.
func (w *Worker) AgentMemory(ctx context.Context, agentID string) (json.RawMessage, error) {
	inst, release, err := w.registry.Inspect(agentID)
	if err != nil {
		return nil, err
	}
	defer release()
	mem, err := inst.Memory(ctx)
	if err != nil {
		return nil, models.NewAPIError(http.StatusInternalServerError, err)
	}
	return mem, nil
}

// Call executes fn against the agent. The synchronous path runs inline,
// bounded by max_timeout; the asynchronous path parks a pending task in the
// result store, hands the job to the dispatch pool and returns the task id
// as a placeholder.
func (w *Worker) Call(ctx context.Context, agentID, fn string, args json.RawMessage, async bool) (*models.CallResult, error) {
	if fn == "" {
		return nil, models.ErrFuncsMissingName
	}

	if !async {
		return w.callSync(ctx, agentID, fn, args)
	}

	// absent agents fail synchronously even on the async path
	_, release, err := w.registry.Inspect(agentID)
	if err != nil {
		return nil, err
	}
	release()

	task := &models.Task{
		ID:        id.New().String(),
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now(),
	}
	if err := w.store.Put(ctx, task); err != nil {
		return nil, models.NewAPIError(http.StatusInternalServerError, err)
	}
	err = w.pool.Enqueue(&dispatch.Job{
		AgentID: agentID,
		Func:    fn,
		Args:    args,
		TaskID:  task.ID,
	})
	if err != nil {
		if derr := w.store.Delete(ctx, task.ID); derr != nil {
			common.Logger(ctx).WithError(derr).WithFields(logrus.Fields{"task_id": task.ID}).Error("error deleting unqueued task")
		}
		return nil, err
	}
	return &models.CallResult{TaskID: task.ID}, nil
}

func (w *Worker) callSync(ctx context.Context, agentID, fn string, args json.RawMessage) (*models.CallResult, error) {
	inst, release, err := w.registry.Borrow(agentID)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.MaxTimeout)
	defer cancel()

	out, err := inst.Invoke(ctx, fn, args)
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, models.ErrCallTimeout
		case context.Canceled:
			// caller went away, not a worker failure
			return nil, models.ErrCallCancelled
		}
		if apiErr, ok := err.(models.APIError); ok {
			return nil, apiErr
		}
		return nil, models.NewAPIError(http.StatusInternalServerError, err)
	}
	if out == nil {
		out = json.RawMessage(`null`)
	}
	return &models.CallResult{Value: out}, nil
}

// Poll is a single non-blocking read of a placeholder. An id the store no
// longer knows comes back as ErrTasksNotFound, distinct from a task that is
// still pending.
func (w *Worker) Poll(ctx context.Context, taskID string) (*models.Task, error) {
	if taskID == "" {
		return nil, models.ErrTasksMissingID
	}
	return w.store.Get(ctx, taskID)
}

// SetModelConfigs validates and registers model configurations for agents
// spawned later. Each entry must be an object carrying a model_type.
func (w *Worker) SetModelConfigs(ctx context.Context, raw json.RawMessage) error {
	var configs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &configs); err != nil || len(configs) == 0 {
		return models.ErrConfigsInvalid
	}
	for name, cfg := range configs {
		var body struct {
			ModelType string `json:"model_type"`
		}
		if name == "" || json.Unmarshal(cfg, &body) != nil || body.ModelType == "" {
			return models.ErrConfigsInvalid
		}
	}

	w.configsMu.Lock()
	for name, cfg := range configs {
		w.modelConfigs[name] = cfg
	}
	w.configsMu.Unlock()
	common.Logger(ctx).WithFields(logrus.Fields{"configs": len(configs)}).Info("model configs updated")
	return nil
}

// ModelConfig returns a registered model configuration by name.
func (w *Worker) ModelConfig(name string) (json.RawMessage, bool) {
	w.configsMu.RLock()
	defer w.configsMu.RUnlock()
	cfg, ok := w.modelConfigs[name]
	return cfg, ok
}

// Close drains the dispatch pool, then tears down the registry and the
// store.
func (w *Worker) Close(ctx context.Context) error {
	w.pool.Close()
	err := w.registry.Close(ctx)
	if serr := w.store.Close(); err == nil {
		err = serr
	}
	return err
}
