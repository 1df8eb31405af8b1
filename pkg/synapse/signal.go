package synapse

import (
	"fmt"
	"reflect"
	"sync"
)

// signalBase provides type-erased subscriber management. It is embedded in
// Signal[T] and referenced from effect source lists, so effects can drop
// subscriptions without knowing the signal's value type.
type signalBase struct {
	id   uint64
	name string

	// subs are the effects subscribed to this signal, in subscription
	// order. Notification is first-subscribed-first, so order is
	// preserved on removal.
	subs  []*Effect
	subMu sync.Mutex
}

// subscribe adds an effect to the subscriber list, deduplicating by ID.
func (b *signalBase) subscribe(e *Effect) {
	if e == nil {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	for _, existing := range b.subs {
		if existing.id == e.id {
			return
		}
	}
	b.subs = append(b.subs, e)
}

// unsubscribe removes an effect from the subscriber list, keeping the
// remaining subscribers in their original order.
func (b *signalBase) unsubscribe(e *Effect) {
	if e == nil {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	for i, existing := range b.subs {
		if existing.id == e.id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// snapshot copies the current subscriber list so notification can run
// without holding the lock while effects re-execute (and possibly
// re-subscribe).
func (b *signalBase) snapshot() []*Effect {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	subs := make([]*Effect, len(b.subs))
	copy(subs, b.subs)
	return subs
}

// count returns the number of current subscribers.
func (b *signalBase) count() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

// label returns the diagnostic name for this signal.
func (b *signalBase) label() string {
	if b.name != "" {
		return b.name
	}
	return fmt.Sprintf("signal-%d", b.id)
}

// Signal is a reactive value container. Reading a Signal during an effect
// execution subscribes that effect; writing a different value re-runs every
// subscriber synchronously, in subscription order.
type Signal[T any] struct {
	base signalBase

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal is the custom equality function; nil means default equality.
	equal func(T, T) bool

	// alwaysNotify disables change suppression: every write notifies.
	alwaysNotify bool
}

// NewSignal creates a new signal with the given initial value. Change
// detection defaults to strict equality for comparable kinds and
// reflect.DeepEqual otherwise; configure it with WithEquals or
// AlwaysNotify.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base: signalBase{
			id: nextID(),
		},
		value: initial,
	}
}

// CreateSignal creates a signal and returns its getter/setter pair:
//
//	count, setCount := synapse.CreateSignal(0)
//	setCount(count() + 1)
//
// Configured signals use the struct form and Pair:
//
//	get, set := synapse.NewSignal(0).WithName("count").Pair()
func CreateSignal[T any](initial T) (func() T, func(T)) {
	return NewSignal(initial).Pair()
}

// WithEquals configures a custom equality function, used to decide whether
// a write changed the value. The function reports true when the two values
// are equal (the write is then suppressed). Returns the signal for
// chaining.
func (s *Signal[T]) WithEquals(fn func(a, b T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// AlwaysNotify disables change suppression: every write notifies
// subscribers even when the new value equals the old one. Returns the
// signal for chaining.
func (s *Signal[T]) AlwaysNotify() *Signal[T] {
	s.alwaysNotify = true
	return s
}

// WithName sets the diagnostic name used in debug records and errors.
// Returns the signal for chaining.
func (s *Signal[T]) WithName(name string) *Signal[T] {
	s.base.name = name
	return s
}

// Name returns the diagnostic name, or a generated "signal-<id>" label.
func (s *Signal[T]) Name() string {
	return s.base.label()
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// Subscribers returns the number of effects currently subscribed.
func (s *Signal[T]) Subscribers() int {
	return s.base.count()
}

// Pair returns the getter/setter pair for this signal. Both close over the
// signal, so a configured signal can be handed out as plain functions.
func (s *Signal[T]) Pair() (func() T, func(T)) {
	return s.Get, s.Set
}

// Get returns the current value and subscribes the current effect, if one
// is executing on this goroutine.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	if obs := currentObserver(); obs != nil {
		s.base.subscribe(obs)
		obs.addSource(&s.base)
	}

	if DebugEnabled() {
		Emit(Record{Op: OpRead, Signal: s.base.label(), Value: value})
	}
	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set writes a new value. When the value changed under the configured
// equality, every subscriber re-runs synchronously, in subscription order,
// before Set returns. A failure inside one subscriber is contained by that
// subscriber and does not stop the rest. Writes performed by reacting
// effects recurse depth-first; the engine does not detect cycles.
func (s *Signal[T]) Set(value T) {
	s.write("set", value)
}

// Update derives the new value from the current one. A panic inside fn
// propagates synchronously to the caller as *SignalError and the value is
// left untouched. Otherwise Update behaves exactly like Set.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	prev := s.value
	s.mu.Unlock()

	var next T
	if err := capture(func() { next = fn(prev) }); err != nil {
		panic(&SignalError{Signal: s.base.label(), Op: "update", Err: err})
	}
	s.write("update", next)
}

// write performs change detection, stores the value, records the write and
// notifies subscribers.
func (s *Signal[T]) write(op string, value T) {
	old, changed, subscribers := s.store(op, value)

	if DebugEnabled() {
		Emit(Record{
			Op:          OpWrite,
			Signal:      s.base.label(),
			From:        old,
			To:          value,
			Changed:     changed,
			Subscribers: subscribers,
		})
	}

	if !changed {
		return
	}
	for _, e := range s.base.snapshot() {
		e.run()
	}
}

// store applies change detection and the assignment under the value lock.
// The deferred unlock keeps the signal usable when a custom equality
// function panics out of changed.
func (s *Signal[T]) store(op string, value T) (old T, changed bool, subscribers int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old = s.value
	changed = s.changed(op, old, value)
	if changed {
		s.value = value
	}
	return old, changed, s.base.count()
}

// changed reports whether a write from old to next must notify. A panic in
// a custom equality function is a cell failure and surfaces to the writer
// as *SignalError.
func (s *Signal[T]) changed(op string, old, next T) bool {
	if s.alwaysNotify {
		return true
	}
	if s.equal == nil {
		return !defaultEquals(old, next)
	}

	var eq bool
	if err := capture(func() { eq = s.equal(old, next) }); err != nil {
		panic(&SignalError{Signal: s.base.label(), Op: op, Err: err})
	}
	return !eq
}

// capture runs fn and converts a panic into an error.
func capture(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = normalizePanic(r)
		}
	}()
	fn()
	return nil
}

// defaultEquals provides type-appropriate equality checking: == for the
// common comparable kinds, reflect.DeepEqual for everything else.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int8:
		return av == any(b).(int8)
	case int16:
		return av == any(b).(int16)
	case int32:
		return av == any(b).(int32)
	case int64:
		return av == any(b).(int64)
	case uint:
		return av == any(b).(uint)
	case uint8:
		return av == any(b).(uint8)
	case uint16:
		return av == any(b).(uint16)
	case uint32:
		return av == any(b).(uint32)
	case uint64:
		return av == any(b).(uint64)
	case float32:
		return av == any(b).(float32)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	default:
		return reflect.DeepEqual(a, b)
	}
}
