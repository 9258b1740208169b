package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/agentdproject/agentd/api/models"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

// ErrAlreadyResolved is returned by Resolve when the task already reached a
// terminal state. Terminal results are immutable.
var ErrAlreadyResolved = errors.New("task already resolved")

// Store holds pending and completed call results keyed by task id. A store
// may be process local or shared by several cooperating workers, so every
// method must be atomic per key.
type Store interface {
	// Put inserts a task record, overwriting any record under the same id.
	// It is used to park a pending placeholder before dispatch.
	Put(ctx context.Context, task *models.Task) error

	// Get returns the current record, models.ErrTasksNotFound if the id is
	// unknown or the record expired. Reading never mutates the record.
	Get(ctx context.Context, taskID string) (*models.Task, error)

	// Resolve transitions a pending task to ready (errMsg empty) or failed
	// (errMsg set). It is a check-and-set: a task that is already terminal
	// is left untouched and ErrAlreadyResolved is returned.
	Resolve(ctx context.Context, taskID string, payload json.RawMessage, errMsg string) error

	// Delete removes the record, missing ids are not an error.
	Delete(ctx context.Context, taskID string) error

	Close() error
}

// Provider for result store backends
type Provider interface {
	fmt.Stringer
	// Supports indicates if this provider can handle a specific URL scheme
	Supports(u *url.URL) bool
	// New creates a store from the URL. ttl bounds how long a record may
	// live before the backend may expire it.
	New(u *url.URL, ttl time.Duration) (Store, error)
}

var providers []Provider

// AddProvider registers a new global result store provider
func AddProvider(p Provider) {
	providers = append(providers, p)
}

// New will parse the URL and return the correct store implementation.
func New(storeURL string, ttl time.Duration) (Store, error) {
	s, err := newStore(storeURL, ttl)
	if err != nil {
		return nil, err
	}
	return &spanStore{s}, nil
}

func newStore(storeURL string, ttl time.Duration) (Store, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{"url": storeURL}).Fatal("bad result store URL")
	}
	logrus.WithFields(logrus.Fields{"store": u.Scheme}).Debug("selecting result store")
	for _, p := range providers {
		if p.Supports(u) {
			return p.New(u, ttl)
		}
	}
	return nil, fmt.Errorf("result store type not supported %v", u.Scheme)
}

type spanStore struct {
	store Store
}

func (s *spanStore) Put(ctx context.Context, task *models.Task) error {
	ctx, span := trace.StartSpan(ctx, "taskstore_put")
	defer span.End()
	return s.store.Put(ctx, task)
}

func (s *spanStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	ctx, span := trace.StartSpan(ctx, "taskstore_get")
	defer span.End()
	return s.store.Get(ctx, taskID)
}

func (s *spanStore) Resolve(ctx context.Context, taskID string, payload json.RawMessage, errMsg string) error {
	ctx, span := trace.StartSpan(ctx, "taskstore_resolve")
	defer span.End()
	return s.store.Resolve(ctx, taskID, payload, errMsg)
}

func (s *spanStore) Delete(ctx context.Context, taskID string) error {
	ctx, span := trace.StartSpan(ctx, "taskstore_delete")
	defer span.End()
	return s.store.Delete(ctx, taskID)
}

func (s *spanStore) Close() error {
	return s.store.Close()
}
