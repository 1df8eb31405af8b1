package syntest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/synapse-dev/synapse/pkg/resource"
	"github.com/synapse-dev/synapse/pkg/synapse"
)

// RunLog is a concurrency-safe execution-order log. Effects append to it
// as they run; tests assert on the resulting order.
type RunLog struct {
	mu      sync.Mutex
	entries []string
}

// NewRunLog creates an empty log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Add appends one entry.
func (l *RunLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Addf appends one formatted entry.
func (l *RunLog) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the log in append order.
func (l *RunLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of entries.
func (l *RunLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset clears the log.
func (l *RunLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Expect asserts that the log contains exactly want, in order.
//
// Example:
//
//	log.Expect(t, "run", "cleanup", "run")
func (l *RunLog) Expect(t *testing.T, want ...string) {
	t.Helper()
	got := l.Entries()
	if len(got) != len(want) {
		t.Errorf("log has %d entries, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q\ngot:  %v\nwant: %v", i, got[i], want[i], got, want)
			return
		}
	}
}

// CollectSink is a synapse.Sink that records every diagnostic record it
// receives. Safe for concurrent use.
type CollectSink struct {
	mu      sync.Mutex
	records []synapse.Record
}

// NewCollectSink creates an empty collector.
func NewCollectSink() *CollectSink {
	return &CollectSink{}
}

// Emit implements synapse.Sink.
func (s *CollectSink) Emit(r synapse.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
}

// Records returns a copy of everything collected so far.
func (s *CollectSink) Records() []synapse.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]synapse.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Filter returns the collected records with the given operation.
func (s *CollectSink) Filter(op synapse.Op) []synapse.Record {
	var out []synapse.Record
	for _, r := range s.Records() {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Reset clears the collector.
func (s *CollectSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

// Collect runs fn with debug mode on and a fresh collector installed as
// the diagnostic sink, and returns the records fn emitted. The default
// sink and debug mode are restored when the test finishes.
func Collect(t *testing.T, fn func()) []synapse.Record {
	t.Helper()

	sink := NewCollectSink()
	synapse.SetSink(sink)
	synapse.SetDebugMode(true)
	t.Cleanup(func() {
		synapse.SetDebugMode(false)
		synapse.SetSink(nil)
	})

	fn()
	return sink.Records()
}

// Ops extracts the operation sequence from records.
func Ops(records []synapse.Record) []synapse.Op {
	out := make([]synapse.Op, len(records))
	for i, r := range records {
		out[i] = r.Op
	}
	return out
}

// ExpectOps asserts that records carry exactly the given operations, in
// order.
//
// Example:
//
//	syntest.ExpectOps(t, records, synapse.OpRead, synapse.OpEffectRun)
func ExpectOps(t *testing.T, records []synapse.Record, want ...synapse.Op) {
	t.Helper()
	got := Ops(records)
	if len(got) != len(want) {
		t.Errorf("got %d operations, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("op[%d] = %q, want %q\ngot:  %v\nwant: %v", i, got[i], want[i], got, want)
			return
		}
	}
}

// ExpectOp asserts that at least one record carries the given operation.
func ExpectOp(t *testing.T, records []synapse.Record, want synapse.Op) {
	t.Helper()
	for _, r := range records {
		if r.Op == want {
			return
		}
	}
	t.Errorf("no %q record found in %v", want, Ops(records))
}

// Eventually polls cond until it returns true or the timeout elapses.
// Use it for conditions driven by background goroutines, like resource
// fetches.
func Eventually(t *testing.T, cond func() bool, timeout, interval time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(interval)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// AwaitResource blocks until the resource leaves its loading state, then
// returns the data and error signal values. The test fails if the
// resource does not settle within the timeout.
func AwaitResource[T any](t *testing.T, r *resource.Resource[T], timeout time.Duration) (T, error) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !r.PeekLoading() {
			return r.PeekData(), r.PeekErr()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("resource %q did not settle within %v", r.Name(), timeout)

	var zero T
	return zero, nil
}
