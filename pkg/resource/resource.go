// Package resource wraps an asynchronous fetch behind three coordinated
// signals: loading, error and data. Effects and memos that read a resource
// re-run as the fetch moves through its lifecycle, exactly as if they were
// reading plain signals.
//
//	users := resource.New(func() ([]User, error) {
//	    return client.ListUsers(context.Background())
//	})
//	e := synapse.CreateEffect(func() synapse.Cleanup {
//	    if users.Loading() {
//	        fmt.Println("loading...")
//	    } else if err := users.Err(); err != nil {
//	        fmt.Println("failed:", err)
//	    } else {
//	        fmt.Println(len(users.Data()), "users")
//	    }
//	    return nil
//	})
//
// State writes land on the fetch goroutine, so effects observing a resource
// re-run there once the fetch settles.
package resource

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

// Resource manages asynchronous data fetching as reactive state. Each fetch
// carries a generation number; a fetch that was superseded by a newer one
// settles without touching the signals, so overlapping refetches cannot
// interleave their outcomes.
type Resource[T any] struct {
	fetcher func() (T, error)

	loading *synapse.Signal[bool]
	err     *synapse.Signal[error]
	data    *synapse.Signal[T]

	name      string
	staleTime time.Duration
	onSuccess func(T)
	onError   func(error)

	initial T

	gen atomic.Uint64

	mu        sync.Mutex
	lastFetch time.Time

	keyWatch *synapse.Effect
}

// New creates a resource and triggers one fire-and-forget initial fetch
// before returning. Until that fetch settles, Loading reports true, Err nil
// and Data the configured initial value (zero by default).
func New[T any](fetcher func() (T, error), opts ...Option[T]) *Resource[T] {
	r := &Resource[T]{
		fetcher: fetcher,
		loading: synapse.NewSignal(true),
		err:     synapse.NewSignal[error](nil),
	}
	for _, opt := range opts {
		opt.applyResource(r)
	}

	r.data = synapse.NewSignal(r.initial)
	if r.name != "" {
		r.loading.WithName(r.name + ".loading")
		r.err.WithName(r.name + ".error")
		r.data.WithName(r.name + ".data")
	}

	r.Refetch()
	return r
}

// NewWithKey creates a resource that refetches whenever a signal read by
// key changes. The key function runs under tracking; the fetcher receives
// the key's current value. Call Close to stop the key watcher.
func NewWithKey[K comparable, T any](key func() K, fetcher func(K) (T, error), opts ...Option[T]) *Resource[T] {
	r := New(func() (T, error) {
		return fetcher(key())
	}, opts...)

	r.keyWatch = synapse.Watch(func() { _ = key() }, func() {
		r.Refetch()
	})
	return r
}

// Loading reports whether a fetch is in flight. Tracked read.
func (r *Resource[T]) Loading() bool {
	return r.loading.Get()
}

// Err returns the failure of the most recent settled fetch, or nil.
// Tracked read.
func (r *Resource[T]) Err() error {
	return r.err.Get()
}

// Data returns the most recently fetched value. Tracked read.
func (r *Resource[T]) Data() T {
	return r.data.Get()
}

// DataOr returns the fetched value when the resource is settled and
// healthy, and fallback otherwise. Tracked read.
func (r *Resource[T]) DataOr(fallback T) T {
	if !r.loading.Get() && r.err.Get() == nil {
		return r.data.Get()
	}
	return fallback
}

// PeekLoading reads the loading flag without subscribing.
func (r *Resource[T]) PeekLoading() bool {
	return r.loading.Peek()
}

// PeekErr reads the error without subscribing.
func (r *Resource[T]) PeekErr() error {
	return r.err.Peek()
}

// PeekData reads the value without subscribing.
func (r *Resource[T]) PeekData() T {
	return r.data.Peek()
}

// Refetch forces a fetch regardless of freshness. It synchronously sets
// loading true and clears the error, then runs the fetcher on its own
// goroutine. The returned channel closes when the fetch settles, whatever
// the outcome; a superseded fetch still closes its channel but leaves the
// signals to the newer fetch.
func (r *Resource[T]) Refetch() <-chan struct{} {
	gen := r.gen.Add(1)

	r.loading.Set(true)
	r.err.Set(nil)

	if synapse.DebugEnabled() {
		synapse.Emit(synapse.Record{Op: synapse.OpResourceFetch, Signal: r.label(), Attempt: int(gen)})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		value, err := r.runFetcher()

		if r.gen.Load() != gen {
			return
		}

		r.mu.Lock()
		r.lastFetch = time.Now()
		r.mu.Unlock()

		if err != nil {
			r.err.Set(err)
			r.loading.Set(false)
			if r.onError != nil {
				r.onError(err)
			}
			return
		}

		r.data.Set(value)
		r.loading.Set(false)
		if r.onSuccess != nil {
			r.onSuccess(value)
		}
	}()
	return done
}

// Fetch triggers a fetch unless the current data is settled, healthy and
// younger than the configured stale time, in which case it returns an
// already-closed channel.
func (r *Resource[T]) Fetch() <-chan struct{} {
	r.mu.Lock()
	fresh := r.staleTime > 0 && !r.lastFetch.IsZero() && time.Since(r.lastFetch) < r.staleTime
	r.mu.Unlock()

	if fresh && !r.loading.Peek() && r.err.Peek() == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return r.Refetch()
}

// Invalidate marks the current data as stale so the next Fetch runs the
// fetcher even inside the stale window.
func (r *Resource[T]) Invalidate() {
	r.mu.Lock()
	r.lastFetch = time.Time{}
	r.mu.Unlock()
}

// Mutate applies an optimistic local update to the data signal without
// touching loading or error state.
func (r *Resource[T]) Mutate(fn func(T) T) {
	r.data.Set(fn(r.data.Peek()))
}

// Name returns the configured name, or "resource".
func (r *Resource[T]) Name() string {
	return r.label()
}

// Close stops the key watcher created by NewWithKey. Resources from New
// have nothing to release; Close on them is a no-op.
func (r *Resource[T]) Close() {
	if r.keyWatch != nil {
		r.keyWatch.Dispose()
	}
}

// runFetcher invokes the fetcher, converting a panic into an ordinary
// error. Resource failures are state, never exceptions: nothing thrown by
// a fetcher reaches the caller of Refetch.
func (r *Resource[T]) runFetcher() (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, ok := rec.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", rec)
		}
	}()
	return r.fetcher()
}

func (r *Resource[T]) label() string {
	if r.name != "" {
		return r.name
	}
	return "resource"
}
