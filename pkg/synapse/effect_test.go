package synapse

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// discardLogger silences the retry/cleanup logging that failure tests
// provoke on purpose.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEffectRunsOnCreate(t *testing.T) {
	ran := false
	e := CreateEffect(func() Cleanup {
		ran = true
		return nil
	})
	defer e.Dispose()

	if !ran {
		t.Error("effect should run immediately on creation")
	}
}

func TestEffectRunsExactlyOnceOnCreate(t *testing.T) {
	runs := 0
	e := CreateEffect(func() Cleanup {
		runs++
		return nil
	})
	defer e.Dispose()

	if runs != 1 {
		t.Errorf("expected exactly 1 run before CreateEffect returns, got %d", runs)
	}
}

func TestEffectTracksDependencies(t *testing.T) {
	count := NewSignal(0)
	runs := 0

	e := CreateEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})
	defer e.Dispose()

	if runs != 1 {
		t.Fatalf("expected 1 run, got %d", runs)
	}

	// Changing the signal re-runs the effect synchronously
	count.Set(1)
	if runs != 2 {
		t.Errorf("expected 2 runs after signal change, got %d", runs)
	}
}

func TestEffectCleanupBeforeRerun(t *testing.T) {
	count := NewSignal(0)
	var order []string

	e := CreateEffect(func() Cleanup {
		n := count.Get()
		order = append(order, "run")
		return func() {
			order = append(order, "cleanup")
			_ = n
		}
	})
	defer e.Dispose()

	count.Set(1)

	// cleanup of the previous run precedes the next run
	want := []string{"run", "cleanup", "run"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestEffectCleanupOnDispose(t *testing.T) {
	cleanups := 0
	e := CreateEffect(func() Cleanup {
		return func() { cleanups++ }
	})

	if cleanups != 0 {
		t.Fatalf("cleanup must not run before dispose, got %d", cleanups)
	}

	e.Dispose()
	if cleanups != 1 {
		t.Errorf("expected 1 cleanup on dispose, got %d", cleanups)
	}
}

func TestEffectDisposeIdempotent(t *testing.T) {
	cleanups := 0
	e := CreateEffect(func() Cleanup {
		return func() { cleanups++ }
	})

	e.Dispose()
	e.Dispose()

	if !e.IsDisposed() {
		t.Error("expected IsDisposed true after dispose")
	}
	if cleanups != 1 {
		t.Errorf("cleanup must run at most once, got %d", cleanups)
	}
}

func TestEffectDisposeStopsReruns(t *testing.T) {
	count := NewSignal(0)
	runs := 0

	e := CreateEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return nil
	})

	e.Dispose()
	count.Set(1)

	if runs != 1 {
		t.Errorf("disposed effect must not re-run, got %d runs", runs)
	}
}

func TestEffectDisposeUnsubscribes(t *testing.T) {
	count := NewSignal(0)

	e := CreateEffect(func() Cleanup {
		_ = count.Get()
		return nil
	})

	if count.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count.Subscribers())
	}

	e.Dispose()
	if count.Subscribers() != 0 {
		t.Errorf("dispose must drop the subscription, got %d subscribers", count.Subscribers())
	}
}

func TestEffectDynamicDependencies(t *testing.T) {
	useA := NewSignal(true)
	a := NewSignal("a0")
	b := NewSignal("b0")
	runs := 0

	e := CreateEffect(func() Cleanup {
		if useA.Get() {
			_ = a.Get()
		} else {
			_ = b.Get()
		}
		runs++
		return nil
	})
	defer e.Dispose()

	// While the a-branch is active, b is not a dependency
	b.Set("b1")
	if runs != 1 {
		t.Errorf("inactive branch signal must not trigger, got %d runs", runs)
	}
	a.Set("a1")
	if runs != 2 {
		t.Errorf("active branch signal must trigger, got %d runs", runs)
	}

	// Flip the branch: a must be dropped, b picked up
	useA.Set(false)
	if runs != 3 {
		t.Fatalf("branch flip must trigger, got %d runs", runs)
	}

	a.Set("a2")
	if runs != 3 {
		t.Errorf("dropped dependency must not trigger, got %d runs", runs)
	}
	if a.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers on dropped signal, got %d", a.Subscribers())
	}

	b.Set("b2")
	if runs != 4 {
		t.Errorf("new dependency must trigger, got %d runs", runs)
	}
}

func TestEffectNestedObserverRestored(t *testing.T) {
	outer := NewSignal(0)
	inner := NewSignal(0)
	outerRuns := 0
	innerRuns := 0

	var innerEffect *Effect
	e := CreateEffect(func() Cleanup {
		_ = outer.Get()
		outerRuns++
		if innerEffect == nil {
			innerEffect = CreateEffect(func() Cleanup {
				_ = inner.Get()
				innerRuns++
				return nil
			})
		}
		return nil
	})
	defer e.Dispose()
	defer innerEffect.Dispose()

	// Reads inside the nested CreateEffect belong to the nested effect;
	// the outer effect's own tracking survives the nested creation.
	inner.Set(1)
	if innerRuns != 2 || outerRuns != 1 {
		t.Errorf("expected inner=2 outer=1, got inner=%d outer=%d", innerRuns, outerRuns)
	}
	outer.Set(1)
	if outerRuns != 2 {
		t.Errorf("expected outer=2, got %d", outerRuns)
	}
}

func TestEffectRetryBound(t *testing.T) {
	sched := NewManualScheduler()
	runs := 0

	e := CreateEffect(func() Cleanup {
		runs++
		panic("always failing")
	}, WithScheduler(sched), WithLogger(discardLogger()))
	defer e.Dispose()

	if runs != 1 {
		t.Fatalf("expected 1 initial run, got %d", runs)
	}
	if e.LastError() == nil {
		t.Fatal("expected lastError after failing run")
	}

	// Exponential back-off: 200ms, 400ms, 800ms
	sched.Advance(200 * time.Millisecond)
	if runs != 2 {
		t.Fatalf("expected retry 1 at +200ms, got %d runs", runs)
	}
	sched.Advance(400 * time.Millisecond)
	if runs != 3 {
		t.Fatalf("expected retry 2 at +400ms, got %d runs", runs)
	}
	sched.Advance(800 * time.Millisecond)
	if runs != 4 {
		t.Fatalf("expected retry 3 at +800ms, got %d runs", runs)
	}

	// Budget spent: 1 initial + 3 retries, nothing further scheduled
	if sched.Pending() != 0 {
		t.Errorf("expected no pending retries after exhaustion, got %d", sched.Pending())
	}
	sched.Advance(time.Hour)
	if runs != 4 {
		t.Errorf("expected exactly 4 total runs, got %d", runs)
	}
	if e.LastError() == nil || !strings.Contains(e.LastError().Error(), "always failing") {
		t.Errorf("expected lastError to carry the panic, got %v", e.LastError())
	}
}

func TestEffectDormantAfterExhaustionStaysSubscribed(t *testing.T) {
	sched := NewManualScheduler()
	trigger := NewSignal(0)
	runs := 0

	e := CreateEffect(func() Cleanup {
		_ = trigger.Get()
		runs++
		panic("still failing")
	}, WithScheduler(sched), WithLogger(discardLogger()))
	defer e.Dispose()

	sched.Advance(200 * time.Millisecond)
	sched.Advance(400 * time.Millisecond)
	sched.Advance(800 * time.Millisecond)
	if runs != 4 {
		t.Fatalf("expected 4 runs, got %d", runs)
	}

	// Dormant but still subscribed: an external write re-runs the body
	// once, and with the retry budget still spent no retry is scheduled.
	trigger.Set(1)
	if runs != 5 {
		t.Errorf("expected external trigger to re-run dormant effect, got %d runs", runs)
	}
	if sched.Pending() != 0 {
		t.Errorf("retry budget must not refresh without a successful run, got %d pending", sched.Pending())
	}
}

func TestEffectRetryBudgetResetsOnSuccess(t *testing.T) {
	sched := NewManualScheduler()
	trigger := NewSignal(0)
	failuresLeft := 2
	runs := 0

	e := CreateEffect(func() Cleanup {
		_ = trigger.Get()
		runs++
		if failuresLeft > 0 {
			failuresLeft--
			panic("transient")
		}
		return nil
	}, WithScheduler(sched), WithLogger(discardLogger()))
	defer e.Dispose()

	// Initial run fails, two retries later the body succeeds
	sched.Advance(200 * time.Millisecond)
	sched.Advance(400 * time.Millisecond)
	if runs != 3 {
		t.Fatalf("expected 3 runs, got %d", runs)
	}
	if e.LastError() != nil {
		t.Errorf("expected lastError cleared on success, got %v", e.LastError())
	}

	// A later failure starts a fresh budget with the base delay again
	failuresLeft = 1
	trigger.Set(1)
	if sched.Pending() != 1 {
		t.Fatalf("expected fresh retry scheduled after reset, got %d pending", sched.Pending())
	}
	sched.Advance(200 * time.Millisecond)
	if runs != 5 {
		t.Errorf("expected reset back-off to fire at +200ms, got %d runs", runs)
	}
	if e.LastError() != nil {
		t.Errorf("expected recovery on retry, got %v", e.LastError())
	}
}

func TestEffectRetryDelaysRecorded(t *testing.T) {
	sink := &captureSink{}
	SetDebugMode(true)
	SetSink(sink)
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	sched := NewManualScheduler()
	e := CreateEffect(func() Cleanup {
		panic("nope")
	}, WithScheduler(sched), WithLogger(discardLogger()), WithEffectName("flaky"))
	defer e.Dispose()

	sched.Advance(200 * time.Millisecond)
	sched.Advance(400 * time.Millisecond)
	sched.Advance(800 * time.Millisecond)

	var delays []time.Duration
	var exhausted int
	for _, r := range sink.records() {
		switch r.Op {
		case OpEffectRetry:
			if r.Effect != "flaky" {
				t.Errorf("expected effect name flaky, got %q", r.Effect)
			}
			delays = append(delays, r.Delay)
		case OpEffectExhausted:
			exhausted++
		}
	}

	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("expected 3 retry records, got %d (%v)", len(delays), delays)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("retry %d: expected delay %v, got %v", i+1, want[i], delays[i])
		}
	}
	if exhausted != 1 {
		t.Errorf("expected 1 exhaustion record, got %d", exhausted)
	}
}

func TestEffectPanicValueNormalized(t *testing.T) {
	cause := errors.New("root cause")

	e1 := CreateEffect(func() Cleanup {
		panic(cause)
	}, WithMaxRetries(0), WithLogger(discardLogger()))
	defer e1.Dispose()
	if !errors.Is(e1.LastError(), cause) {
		t.Errorf("expected error panic preserved, got %v", e1.LastError())
	}

	e2 := CreateEffect(func() Cleanup {
		panic("plain string")
	}, WithMaxRetries(0), WithLogger(discardLogger()))
	defer e2.Dispose()
	if e2.LastError() == nil || e2.LastError().Error() != "plain string" {
		t.Errorf("expected string panic normalized, got %v", e2.LastError())
	}
}

func TestEffectMaxRetriesZero(t *testing.T) {
	sched := NewManualScheduler()
	runs := 0

	e := CreateEffect(func() Cleanup {
		runs++
		panic("no budget")
	}, WithScheduler(sched), WithMaxRetries(0), WithLogger(discardLogger()))
	defer e.Dispose()

	if runs != 1 {
		t.Errorf("expected 1 run, got %d", runs)
	}
	if sched.Pending() != 0 {
		t.Errorf("expected no retry with zero budget, got %d pending", sched.Pending())
	}
}

func TestEffectRetryBaseOption(t *testing.T) {
	sched := NewManualScheduler()
	runs := 0

	e := CreateEffect(func() Cleanup {
		runs++
		panic("slow down")
	}, WithScheduler(sched), WithRetryBase(time.Second), WithLogger(discardLogger()))
	defer e.Dispose()

	// Base 1s doubles the whole ladder: first retry at +2s
	sched.Advance(time.Second)
	if runs != 1 {
		t.Fatalf("retry must not fire before 2s, got %d runs", runs)
	}
	sched.Advance(time.Second)
	if runs != 2 {
		t.Errorf("expected retry at +2s, got %d runs", runs)
	}
}

func TestEffectDisposeCancelsPendingRetry(t *testing.T) {
	sched := NewManualScheduler()
	runs := 0

	e := CreateEffect(func() Cleanup {
		runs++
		panic("failing")
	}, WithScheduler(sched), WithLogger(discardLogger()))

	if sched.Pending() != 1 {
		t.Fatalf("expected 1 pending retry, got %d", sched.Pending())
	}

	e.Dispose()
	if sched.Pending() != 0 {
		t.Errorf("dispose must cancel the pending retry, got %d", sched.Pending())
	}

	sched.Advance(time.Hour)
	if runs != 1 {
		t.Errorf("cancelled retry must not run, got %d runs", runs)
	}
}

func TestEffectCleanupPanicContained(t *testing.T) {
	count := NewSignal(0)
	runs := 0

	e := CreateEffect(func() Cleanup {
		_ = count.Get()
		runs++
		return func() {
			panic("cleanup failure")
		}
	}, WithLogger(discardLogger()))
	defer e.Dispose()

	// The cleanup panic is logged and dropped; the re-run proceeds and
	// the run itself counts as successful.
	count.Set(1)
	if runs != 2 {
		t.Errorf("expected re-run despite cleanup panic, got %d runs", runs)
	}
	if e.LastError() != nil {
		t.Errorf("cleanup failure must not set lastError, got %v", e.LastError())
	}
}

func TestEffectName(t *testing.T) {
	named := CreateEffect(func() Cleanup { return nil }, WithEffectName("ticker"))
	defer named.Dispose()
	if named.Name() != "ticker" {
		t.Errorf("expected ticker, got %q", named.Name())
	}

	anon := CreateEffect(func() Cleanup { return nil })
	defer anon.Dispose()
	if !strings.HasPrefix(anon.Name(), "effect-") {
		t.Errorf("expected generated effect-<id> label, got %q", anon.Name())
	}
}

func TestEffectFailedRunKeepsNoCleanup(t *testing.T) {
	trigger := NewSignal(0)
	cleanups := 0

	e := CreateEffect(func() Cleanup {
		if trigger.Get() == 1 {
			panic("mid-flight")
		}
		return func() { cleanups++ }
	}, WithMaxRetries(0), WithLogger(discardLogger()))

	// Run 1 stored a cleanup; run 2 panics after the stored cleanup ran
	trigger.Set(1)
	if cleanups != 1 {
		t.Fatalf("expected previous cleanup to run before the failing run, got %d", cleanups)
	}

	// The failing run produced no cleanup, so dispose has nothing to run
	e.Dispose()
	if cleanups != 1 {
		t.Errorf("failed run must not leave a stale cleanup, got %d", cleanups)
	}
}
