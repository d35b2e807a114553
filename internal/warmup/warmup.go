// Package warmup gates a heavyweight resource (a speech model, a remote
// service handshake) behind a single concurrent load and reports its state.
package warmup

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Resource states.
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateReady   = "ready"
	StateError   = "error"
)

// LoadFunc prepares the resource. It runs at most once concurrently.
type LoadFunc func(ctx context.Context) error

type Resource struct {
	name string
	load LoadFunc

	group singleflight.Group

	mu    sync.RWMutex
	state string
	err   error
}

func New(name string, load LoadFunc) *Resource {
	return &Resource{name: name, load: load, state: StateIdle}
}

func (r *Resource) Name() string { return r.name }

func (r *Resource) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err is the last load error, nil unless State is StateError.
func (r *Resource) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Ensure loads the resource unless it is already ready. Concurrent callers
// share one load; a failed load is retried on the next call.
func (r *Resource) Ensure(ctx context.Context) error {
	if r.State() == StateReady {
		return nil
	}
	_, err, _ := r.group.Do(r.name, func() (any, error) {
		if r.State() == StateReady {
			return nil, nil
		}
		r.set(StateLoading, nil)
		if err := r.load(ctx); err != nil {
			r.set(StateError, err)
			return nil, err
		}
		r.set(StateReady, nil)
		return nil, nil
	})
	return err
}

func (r *Resource) set(state string, err error) {
	r.mu.Lock()
	r.state = state
	r.err = err
	r.mu.Unlock()
}
