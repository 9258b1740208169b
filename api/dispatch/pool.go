// Package dispatch is the fixed size execution pool for asynchronous agent
// calls. It decouples RPC handling concurrency from agent execution
// concurrency: a slow agent call occupies a pool worker, never an API
// thread.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentdproject/agentd/api/common"
	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/registry"
	"github.com/agentdproject/agentd/api/taskstore"
	"github.com/sirupsen/logrus"
)

// Job is one queued function call. The task id is resolved in the result
// store when the call returns or raises.
type Job struct {
	AgentID string
	Func    string
	Args    json.RawMessage
	TaskID  string
}

type Pool struct {
	registry *registry.Registry
	store    taskstore.Store
	timeout  time.Duration

	jobs chan *Job
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines consuming a queue of at most depth
// pending jobs. timeout bounds a single call's execution.
func NewPool(reg *registry.Registry, store taskstore.Store, workers, depth int, timeout time.Duration) *Pool {
	p := &Pool{
		registry: reg,
		store:    store,
		timeout:  timeout,
		jobs:     make(chan *Job, depth),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logrus.WithFields(logrus.Fields{"workers": workers, "depth": depth}).Info("dispatch pool started")
	return p
}

// Enqueue submits a job without blocking. A full queue is reported as
// ErrDispatchQueueFull so the caller can surface RESOURCE_EXHAUSTED.
func (p *Pool) Enqueue(job *Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return models.ErrWorkerShutdown
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return models.ErrDispatchQueueFull
	}
}

// Queued returns the current queue backlog.
func (p *Pool) Queued() int {
	return len(p.jobs)
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *Pool) run(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	ctx, log := common.LoggerWithFields(ctx, logrus.Fields{"agent_id": job.AgentID, "task_id": job.TaskID, "func": job.Func})

	// one agent's failure must not take the worker goroutine down
	defer func() {
		if rec := recover(); rec != nil {
			log.WithFields(logrus.Fields{"panic": rec}).Error("agent call panicked")
			p.resolve(ctx, job.TaskID, nil, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	inst, release, err := p.registry.Borrow(job.AgentID)
	if err != nil {
		// agent vanished between dispatch and execution
		p.resolve(ctx, job.TaskID, nil, err.Error())
		return
	}
	defer release()

	out, err := inst.Invoke(ctx, job.Func, job.Args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = models.ErrCallTimeout
		}
		p.resolve(ctx, job.TaskID, nil, err.Error())
		return
	}
	p.resolve(ctx, job.TaskID, out, "")
}

func (p *Pool) resolve(ctx context.Context, taskID string, payload json.RawMessage, errMsg string) {
	// resolution must not be bound by the (possibly expired) call context
	err := p.store.Resolve(context.Background(), taskID, payload, errMsg)
	switch err {
	case nil:
	case taskstore.ErrAlreadyResolved:
		common.Logger(ctx).WithFields(logrus.Fields{"task_id": taskID}).Debug("task already resolved")
	default:
		common.Logger(ctx).WithError(err).WithFields(logrus.Fields{"task_id": taskID}).Error("error resolving task")
	}
}

// Close stops accepting jobs and drains the queue.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
