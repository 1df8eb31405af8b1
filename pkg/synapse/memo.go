package synapse

// Memo is an eagerly computed derived value. It composes a Signal and an
// Effect: the effect calls fn under dependency tracking and writes the
// result into the internal signal, so the memo recomputes synchronously
// whenever any signal it read changes, whether or not anyone is reading it.
//
// The internal signal always notifies, so every dependency change produces
// a downstream notification pass even when the recomputed value is
// identical. Reading a memo is a plain signal read; memos therefore nest
// inside effects and other memos transparently, and diamond-shaped graphs
// resolve through ordinary signal notification.
type Memo[T any] struct {
	sig *Signal[T]
	eff *Effect
}

// NewMemo creates a memo and computes it once before returning.
//
// The internal signal is seeded with initial if given, otherwise with one
// plain call to fn. The effect's first run then overwrites the seed, so the
// getter never observably returns the seeded value; the seed only exists so
// the signal has a value of the right shape before the first computation
// lands.
func NewMemo[T any](fn func() T, initial ...T) *Memo[T] {
	var seed T
	if len(initial) > 0 {
		seed = initial[0]
	} else {
		seed = fn()
	}

	m := &Memo[T]{}
	m.sig = NewSignal(seed).AlwaysNotify()
	m.eff = CreateEffect(func() Cleanup {
		m.sig.Set(fn())
		return nil
	})
	return m
}

// CreateMemo creates a memo and returns its getter.
//
//	double := synapse.CreateMemo(func() int { return count.Get() * 2 })
func CreateMemo[T any](fn func() T, initial ...T) func() T {
	return NewMemo(fn, initial...).Get
}

// Get returns the current value. Inside a tracked computation it registers
// the computation as a subscriber of the memo.
func (m *Memo[T]) Get() T {
	return m.sig.Get()
}

// Peek returns the current value without registering a dependency.
func (m *Memo[T]) Peek() T {
	return m.sig.Peek()
}

// WithName sets the diagnostic name used in debug records and log lines.
// Returns the memo for chaining.
func (m *Memo[T]) WithName(name string) *Memo[T] {
	m.sig.WithName(name)
	m.eff.name = name
	return m
}

// Name returns the diagnostic name, or a generated label.
func (m *Memo[T]) Name() string {
	return m.sig.Name()
}

// Effect returns the underlying effect, exposing LastError for memos whose
// computation can fail.
func (m *Memo[T]) Effect() *Effect {
	return m.eff
}

// Dispose stops recomputation permanently and unsubscribes from every
// dependency. The memo's getter keeps returning the last computed value.
func (m *Memo[T]) Dispose() {
	m.eff.Dispose()
}

// IsDisposed reports whether Dispose has been called.
func (m *Memo[T]) IsDisposed() bool {
	return m.eff.IsDisposed()
}
