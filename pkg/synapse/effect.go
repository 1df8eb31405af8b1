package synapse

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Cleanup is a function returned by an effect body to release whatever the
// run acquired. It is invoked before the effect re-runs and once more when
// the effect is disposed.
type Cleanup func()

const (
	// DefaultMaxRetries bounds automatic re-execution after a panicking
	// run: one initial run plus DefaultMaxRetries retries.
	DefaultMaxRetries = 3

	// DefaultRetryBase scales the retry back-off: retry n fires after
	// 2^n * DefaultRetryBase (200ms, 400ms, 800ms with the default).
	DefaultRetryBase = 100 * time.Millisecond
)

// Effect is a reactive computation. Its body runs once at creation under
// dependency tracking; every signal read during a run subscribes the effect,
// and a later write to any of those signals re-runs the body synchronously,
// after first invoking the cleanup returned by the previous run.
//
// A panic inside the body never reaches the writer that triggered the run.
// It is stored as LastError and the body is retried with exponential
// back-off; once the retry budget is spent the effect goes dormant, still
// subscribed, until the next signal write that reaches it re-runs it.
type Effect struct {
	id   uint64
	name string

	fn         func() Cleanup
	sched      Scheduler
	logger     *slog.Logger
	maxRetries int
	retryBase  time.Duration

	disposed atomic.Bool

	// sources are the signals read during the most recent run. They are
	// dropped and re-collected on every run so conditional reads
	// re-track, and unsubscribed on Dispose so no signal keeps a dead
	// runner reachable.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// mu guards the stored cleanup and the retry state.
	mu         sync.Mutex
	cleanup    Cleanup
	lastError  error
	retryCount int
	retryTimer Timer
	backoff    *backoff.ExponentialBackOff
}

// EffectOption configures an Effect at creation.
type EffectOption interface {
	isEffectOption()
	applyEffect(e *Effect)
}

type effectOptionFunc func(*Effect)

func (f effectOptionFunc) isEffectOption()       {}
func (f effectOptionFunc) applyEffect(e *Effect) { f(e) }

// WithEffectName sets the diagnostic name used in debug records and log
// lines.
func WithEffectName(name string) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.name = name
	})
}

// WithScheduler substitutes the scheduler used for retry back-off. Tests
// pass a ManualScheduler to drive retries deterministically.
func WithScheduler(s Scheduler) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		if s != nil {
			e.sched = s
		}
	})
}

// WithMaxRetries overrides the retry budget. Zero disables automatic
// retries entirely.
func WithMaxRetries(n int) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		if n >= 0 {
			e.maxRetries = n
		}
	})
}

// WithRetryBase overrides the back-off base: retry n fires after 2^n times
// the base.
func WithRetryBase(d time.Duration) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		if d > 0 {
			e.retryBase = d
		}
	})
}

// WithLogger routes the effect's failure and cleanup logging through the
// given logger instead of slog.Default().
func WithLogger(l *slog.Logger) EffectOption {
	return effectOptionFunc(func(e *Effect) {
		e.logger = l
	})
}

// CreateEffect creates an effect and runs its body once before returning.
// If the body returns a non-nil Cleanup it is invoked before the next run
// and on Dispose.
//
//	e := synapse.CreateEffect(func() synapse.Cleanup {
//	    fmt.Println("count is", count.Get())
//	    return nil
//	})
//	defer e.Dispose()
func CreateEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	e := &Effect{
		id:         nextID(),
		fn:         fn,
		sched:      defaultScheduler,
		maxRetries: DefaultMaxRetries,
		retryBase:  DefaultRetryBase,
	}
	for _, opt := range opts {
		opt.applyEffect(e)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * e.retryBase
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	e.backoff = bo

	e.run()
	return e
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// Name returns the diagnostic name, or a generated "effect-<id>" label.
func (e *Effect) Name() string {
	return e.label()
}

// IsDisposed reports whether Dispose has been called.
func (e *Effect) IsDisposed() bool {
	return e.disposed.Load()
}

// LastError returns the failure captured by the most recent run, or nil
// after a successful run.
func (e *Effect) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// run executes one pass of the effect body: previous cleanup, dependency
// re-tracking, execution, and on failure the retry bookkeeping. It is
// invoked at creation, by signal writes, and by the retry scheduler.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.runCleanup()
	e.clearSources()

	var next Cleanup
	err := capture(func() {
		runWithObserver(e, func() {
			next = e.fn()
		})
	})
	if err != nil {
		e.fail(err)
		return
	}

	e.mu.Lock()
	e.cleanup = next
	e.lastError = nil
	e.retryCount = 0
	e.backoff.Reset()
	e.mu.Unlock()

	if DebugEnabled() {
		Emit(Record{Op: OpEffectRun, Effect: e.label()})
	}
}

// fail records a body failure and schedules the next retry, or logs the
// terminal failure once the budget is spent. The retry counter resets only
// after a fully successful run, so an external trigger during the dormant
// phase gets no fresh retry budget until one run completes.
func (e *Effect) fail(err error) {
	e.mu.Lock()
	e.lastError = err
	if e.retryCount >= e.maxRetries {
		attempts := e.retryCount + 1
		e.mu.Unlock()

		e.log().Error("synapse: effect failed, retries exhausted; dormant until next trigger",
			"effect", e.label(), "attempts", attempts, "err", err)
		if DebugEnabled() {
			Emit(Record{Op: OpEffectExhausted, Effect: e.label(), Attempt: attempts, Err: err.Error()})
		}
		return
	}

	e.retryCount++
	attempt := e.retryCount
	delay := e.backoff.NextBackOff()
	e.retryTimer = e.sched.Schedule(delay, e.run)
	e.mu.Unlock()

	e.log().Warn("synapse: effect failed; retry scheduled",
		"effect", e.label(), "attempt", attempt, "delay", delay, "err", err)
	if DebugEnabled() {
		Emit(Record{Op: OpEffectRetry, Effect: e.label(), Attempt: attempt, Delay: delay, Err: err.Error()})
	}
}

// runCleanup invokes and clears the stored cleanup. A cleanup panic is
// logged and discarded; it never aborts the next run and never propagates.
func (e *Effect) runCleanup() {
	e.mu.Lock()
	c := e.cleanup
	e.cleanup = nil
	e.mu.Unlock()

	if c == nil {
		return
	}
	if err := capture(c); err != nil {
		e.log().Error("synapse: effect cleanup panicked",
			"effect", e.label(), "err", err)
	}
}

// addSource records a signal read during the current run. Called by
// Signal.Get.
func (e *Effect) addSource(src *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == src {
			return
		}
	}
	e.sources = append(e.sources, src)
}

// clearSources unsubscribes the effect from every signal it read during the
// previous run.
func (e *Effect) clearSources() {
	e.sourcesMu.Lock()
	sources := e.sources
	e.sources = nil
	e.sourcesMu.Unlock()

	for _, src := range sources {
		src.unsubscribe(e)
	}
}

// Dispose halts the effect permanently: the final cleanup runs once, every
// signal subscription is dropped, and a pending retry is cancelled.
// Dispose is idempotent.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	e.mu.Lock()
	t := e.retryTimer
	e.retryTimer = nil
	e.mu.Unlock()
	if t != nil {
		t.Stop()
	}

	e.runCleanup()
	e.clearSources()

	if DebugEnabled() {
		Emit(Record{Op: OpEffectDispose, Effect: e.label()})
	}
}

// label returns the diagnostic name for this effect.
func (e *Effect) label() string {
	if e.name != "" {
		return e.name
	}
	return fmt.Sprintf("effect-%d", e.id)
}

// log returns the configured logger, defaulting to slog.Default().
func (e *Effect) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}
