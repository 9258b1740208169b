// Package memory is the process local result store backend, a TTL'd
// in-process map. Zero network cost, lifetime bound to the worker process.
package memory

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/agentdproject/agentd/api/models"
	"github.com/agentdproject/agentd/api/taskstore"
	cache "github.com/patrickmn/go-cache"
)

type memStore struct {
	// mu serializes writes, Resolve is a read-modify-write and go-cache
	// only locks per operation. Get stays lock-free, it hands out a clone.
	mu    sync.Mutex
	cache *cache.Cache
}

// New returns a store whose records expire ttl after their last write.
func New(ttl time.Duration) taskstore.Store {
	janitor := ttl / 2
	if janitor < time.Second {
		janitor = time.Second
	}
	if janitor > time.Minute {
		janitor = time.Minute
	}
	return &memStore{cache: cache.New(ttl, janitor)}
}

func (s *memStore) Put(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(task.ID, task.Clone(), cache.DefaultExpiration)
	return nil
}

func (s *memStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	v, ok := s.cache.Get(taskID)
	if !ok {
		return nil, models.ErrTasksNotFound
	}
	return v.(*models.Task).Clone(), nil
}

func (s *memStore) Resolve(ctx context.Context, taskID string, payload json.RawMessage, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(taskID)
	if !ok {
		return models.ErrTasksNotFound
	}
	task := v.(*models.Task)
	if task.Terminal() {
		return taskstore.ErrAlreadyResolved
	}

	next := task.Clone()
	if errMsg != "" {
		next.Status = models.TaskStatusFailed
		next.Error = errMsg
	} else {
		next.Status = models.TaskStatusReady
		next.Payload = payload
	}
	s.cache.Set(taskID, next, cache.DefaultExpiration)
	return nil
}

func (s *memStore) Delete(ctx context.Context, taskID string) error {
	s.cache.Delete(taskID)
	return nil
}

func (s *memStore) Close() error {
	s.cache.Flush()
	return nil
}

type memProvider int

func (memProvider) String() string { return "memory" }

func (memProvider) Supports(u *url.URL) bool {
	switch u.Scheme {
	case "memory", "local":
		return true
	}
	return false
}

func (memProvider) New(u *url.URL, ttl time.Duration) (taskstore.Store, error) {
	return New(ttl), nil
}

func init() {
	taskstore.AddProvider(memProvider(0))
}
