package synapse

import (
	"sync"
	"time"
)

// Scheduler is the engine's timing capability. Effects use it to schedule
// retry back-off runs; substituting a scheduler decouples tests (and
// simulations) from the wall clock.
type Scheduler interface {
	// Schedule arranges for fn to run once after d. The returned Timer
	// cancels the run if it has not fired yet.
	Schedule(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled run.
type Timer interface {
	// Stop cancels the scheduled run, reporting whether it was stopped
	// before firing.
	Stop() bool
}

// timerScheduler is the default wall-clock scheduler backed by
// time.AfterFunc.
type timerScheduler struct{}

func (timerScheduler) Schedule(d time.Duration, fn func()) Timer {
	return sysTimer{t: time.AfterFunc(d, fn)}
}

type sysTimer struct {
	t *time.Timer
}

func (s sysTimer) Stop() bool {
	return s.t.Stop()
}

var defaultScheduler Scheduler = timerScheduler{}

// ManualScheduler is a Scheduler driven by an explicit virtual clock.
// Nothing fires until Advance moves the clock past a task's due time, which
// makes retry sequences fully deterministic in tests:
//
//	sched := synapse.NewManualScheduler()
//	e := synapse.CreateEffect(body, synapse.WithScheduler(sched))
//	sched.Advance(200 * time.Millisecond) // first retry runs here
//
// Callbacks run on the goroutine calling Advance.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	sched *ManualScheduler
	due   time.Duration
	seq   uint64
	fn    func()
}

// NewManualScheduler returns a ManualScheduler with its clock at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule registers fn to fire once the virtual clock has advanced by d.
func (m *ManualScheduler) Schedule(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{sched: m, due: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)
	return t
}

// Advance moves the virtual clock forward by d and runs every task that
// became due, in due-time order (scheduling order breaks ties). Tasks
// scheduled by a running callback are measured against the already-advanced
// clock, so a retry chain needs one Advance per step.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	m.mu.Unlock()

	for {
		t := m.popDue()
		if t == nil {
			return
		}
		t.fn()
	}
}

// Pending returns the number of tasks waiting for the clock.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// popDue removes and returns the earliest due task, or nil when none are
// due yet.
func (m *ManualScheduler) popDue() *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := -1
	for i, t := range m.tasks {
		if t.due > m.now {
			continue
		}
		if best == -1 || t.due < m.tasks[best].due ||
			(t.due == m.tasks[best].due && t.seq < m.tasks[best].seq) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	t := m.tasks[best]
	m.tasks = append(m.tasks[:best], m.tasks[best+1:]...)
	return t
}

// Stop cancels the task if it has not fired yet.
func (t *manualTask) Stop() bool {
	m := t.sched
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, pending := range m.tasks {
		if pending == t {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return true
		}
	}
	return false
}
