package resource

import "time"

// Option configures a Resource at creation, before the initial fetch
// fires.
type Option[T any] interface {
	isResourceOption()
	applyResource(r *Resource[T])
}

type optionFunc[T any] func(*Resource[T])

func (optionFunc[T]) isResourceOption()              {}
func (f optionFunc[T]) applyResource(r *Resource[T]) { f(r) }

// WithInitial seeds the data signal. Until the first fetch settles, Data
// returns this value instead of the zero value.
func WithInitial[T any](v T) Option[T] {
	return optionFunc[T](func(r *Resource[T]) {
		r.initial = v
	})
}

// WithName names the resource. The three underlying signals pick up
// derived names (<name>.loading, <name>.error, <name>.data) in debug
// records.
func WithName[T any](name string) Option[T] {
	return optionFunc[T](func(r *Resource[T]) {
		r.name = name
	})
}

// WithStaleTime sets the freshness window honored by Fetch: a settled,
// healthy fetch younger than d short-circuits. Refetch always bypasses the
// window.
func WithStaleTime[T any](d time.Duration) Option[T] {
	return optionFunc[T](func(r *Resource[T]) {
		r.staleTime = d
	})
}

// OnSuccess registers a callback invoked on the fetch goroutine after a
// successful fetch has been applied. Superseded fetches do not fire it.
func OnSuccess[T any](fn func(T)) Option[T] {
	return optionFunc[T](func(r *Resource[T]) {
		r.onSuccess = fn
	})
}

// OnError registers a callback invoked on the fetch goroutine after a
// failed fetch has been applied. Superseded fetches do not fire it.
func OnError[T any](fn func(error)) Option[T] {
	return optionFunc[T](func(r *Resource[T]) {
		r.onError = fn
	})
}
