// Package synapse provides fine-grained reactive state for Go.
//
// The engine tracks dependencies automatically at runtime: reading a signal
// while an effect is executing subscribes that effect to the signal, and a
// later write re-runs every subscribed effect synchronously. Dependency sets
// are re-established on every run, so conditional reads re-track correctly.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := synapse.NewSignal(0)
//	value := count.Get()  // Read (subscribes the current effect, if any)
//	count.Set(5)          // Write (re-runs subscribers when the value changed)
//	count.Update(func(n int) int { return n + 1 })
//
// The tuple form mirrors the getter/setter pair convention:
//
//	get, set := synapse.CreateSignal(0)
//
// Effect runs side effects when dependencies change, with bounded
// exponential-backoff retries when the body panics:
//
//	e := synapse.CreateEffect(func() synapse.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return func() { /* cleanup before the next run */ }
//	})
//	defer e.Dispose()
//
// Memo is an eagerly recomputed derived value that composes like a signal:
//
//	doubled := synapse.CreateMemo(func() int { return count.Get() * 2 })
//	_ = doubled() // plain signal read; tracks inside other effects
//
// # Notification Model
//
// Writes notify subscribers synchronously, first-subscribed-first, on the
// calling goroutine. A write performed from inside a reacting effect runs
// the nested notification to completion before the outer pass resumes.
// There is no batching, no coalescing and no cycle detection: an effect
// that writes a signal it also reads can loop.
//
// # Error Policy
//
// Failures inside signal accessors (a panicking updater or equality
// function) surface synchronously to the caller as *SignalError. Failures
// inside an effect body never reach the writer that triggered the run: they
// are captured on the effect, retried with exponential backoff, and after
// the retry budget is spent the effect stays subscribed but dormant until
// the next external trigger. Cleanup panics are logged and discarded.
//
// # Goroutines
//
// The observer context is goroutine-local. Reads on a goroutine other than
// the one executing the effect body do not register dependencies; propagate
// tracked work explicitly instead of sharing it across goroutines.
package synapse
