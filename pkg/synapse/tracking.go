package synapse

import (
	"sync"

	"github.com/petermattis/goid"
)

// activeObservers maps a goroutine ID to the effect currently executing on
// that goroutine. The observer context is goroutine-local so independent
// graphs can run tracked computations concurrently without sharing an
// ambient global pointer.
//
// An absent entry means "no tracking": reads on that goroutine do not
// create subscriptions. Entries are removed when the outermost tracked
// execution finishes, so the map does not accumulate state for exited
// goroutines.
var activeObservers sync.Map

// currentObserver returns the effect currently executing on this goroutine,
// or nil when no tracked computation is active.
func currentObserver() *Effect {
	if v, ok := activeObservers.Load(goid.Get()); ok {
		return v.(*Effect)
	}
	return nil
}

// setCurrentObserver installs e as the current observer for this goroutine
// and returns the previous observer so it can be restored.
func setCurrentObserver(e *Effect) (prev *Effect) {
	gid := goid.Get()
	if v, ok := activeObservers.Load(gid); ok {
		prev = v.(*Effect)
	}
	if e == nil {
		activeObservers.Delete(gid)
	} else {
		activeObservers.Store(gid, e)
	}
	return prev
}

// runWithObserver executes fn with obs installed as the current observer.
// The previous observer is restored on every exit path, including panics,
// so nested tracked executions unwind correctly. The return value or panic
// of fn propagates unchanged.
func runWithObserver(obs *Effect, fn func()) {
	prev := setCurrentObserver(obs)
	defer setCurrentObserver(prev)
	fn()
}

// Untracked runs fn without dependency tracking: signal reads inside fn do
// not subscribe the current effect.
//
//	synapse.CreateEffect(func() synapse.Cleanup {
//	    n := counter.Get() // tracked
//	    synapse.Untracked(func() {
//	        log.Println("run", n, "generation", generation.Get()) // not tracked
//	    })
//	    return nil
//	})
//
// For a single read, Signal.Peek is clearer.
func Untracked(fn func()) {
	prev := setCurrentObserver(nil)
	defer setCurrentObserver(prev)
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
// Equivalent to s.Peek().
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}
