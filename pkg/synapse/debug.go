package synapse

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Op identifies the kind of engine event a diagnostic Record describes.
type Op string

const (
	OpRead            Op = "read"
	OpWrite           Op = "write"
	OpEffectRun       Op = "effect_run"
	OpEffectRetry     Op = "effect_retry"
	OpEffectExhausted Op = "effect_exhausted"
	OpEffectDispose   Op = "effect_dispose"
	OpResourceFetch   Op = "resource_fetch"
)

// Record is one diagnostic event emitted by the engine while debug mode is
// enabled. Reads carry Signal and Value; writes carry Signal, From, To,
// Changed and the subscriber count at the time of the write; effect and
// resource records carry the fields that apply to them.
type Record struct {
	Seq         uint64        `json:"seq"`
	Time        time.Time     `json:"time"`
	Op          Op            `json:"op"`
	Signal      string        `json:"signal,omitempty"`
	Effect      string        `json:"effect,omitempty"`
	Value       any           `json:"value,omitempty"`
	From        any           `json:"from,omitempty"`
	To          any           `json:"to,omitempty"`
	Changed     bool          `json:"changed,omitempty"`
	Subscribers int           `json:"subscribers,omitempty"`
	Attempt     int           `json:"attempt,omitempty"`
	Delay       time.Duration `json:"delay,omitempty"`
	Err         string        `json:"err,omitempty"`
}

// Sink receives diagnostic records. Implementations must be safe for
// concurrent use. A panicking sink is contained by the engine: the record
// is dropped and the panic logged, so diagnostics can never take down the
// reactive graph.
type Sink interface {
	Emit(Record)
}

var (
	debugMode atomic.Bool
	recordSeq uint64

	sinkMu      sync.RWMutex
	currentSink Sink = NewSlogSink(nil)
)

// SetDebugMode switches diagnostic emission on or off process-wide. While
// enabled, every signal read and write, effect lifecycle transition, and
// resource fetch outcome is delivered to the configured sink.
func SetDebugMode(enabled bool) {
	debugMode.Store(enabled)
}

// DebugEnabled reports whether diagnostic emission is currently on.
func DebugEnabled() bool {
	return debugMode.Load()
}

// SetSink replaces the diagnostic sink. Passing nil restores the default
// slog-backed sink. Use NewMultiSink to keep several sinks attached.
func SetSink(s Sink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s == nil {
		s = NewSlogSink(nil)
	}
	currentSink = s
}

// Emit delivers a record to the diagnostic sink, stamping sequence and
// time. It is a no-op while debug mode is off. Companion packages (the
// resource boundary, devtools) publish through this entry point; most
// callers never need it directly.
func Emit(r Record) {
	if !debugMode.Load() {
		return
	}
	r.Seq = atomic.AddUint64(&recordSeq, 1)
	if r.Time.IsZero() {
		r.Time = time.Now()
	}

	sinkMu.RLock()
	s := currentSink
	sinkMu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("synapse: diagnostic sink panicked; record dropped",
				"op", string(r.Op), "panic", rec)
		}
	}()
	s.Emit(r)
}

// slogSink logs records through log/slog at Debug level.
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink that logs each record via the given logger at
// Debug level. A nil logger means slog.Default(), resolved at emit time so
// the sink follows later slog.SetDefault calls.
func NewSlogSink(logger *slog.Logger) Sink {
	return &slogSink{logger: logger}
}

func (s *slogSink) Emit(r Record) {
	l := s.logger
	if l == nil {
		l = slog.Default()
	}

	attrs := make([]any, 0, 12)
	attrs = append(attrs, "seq", r.Seq, "op", string(r.Op))
	if r.Signal != "" {
		attrs = append(attrs, "signal", r.Signal)
	}
	if r.Effect != "" {
		attrs = append(attrs, "effect", r.Effect)
	}
	switch r.Op {
	case OpRead:
		attrs = append(attrs, "value", r.Value)
	case OpWrite:
		attrs = append(attrs, "from", r.From, "to", r.To,
			"changed", r.Changed, "subscribers", r.Subscribers)
	case OpEffectRetry:
		attrs = append(attrs, "attempt", r.Attempt, "delay", r.Delay)
	}
	if r.Err != "" {
		attrs = append(attrs, "err", r.Err)
	}
	l.Debug("synapse", attrs...)
}

// multiSink fans each record out to every attached sink.
type multiSink struct {
	sinks []Sink
}

// NewMultiSink returns a sink that forwards every record to each of the
// given sinks in order. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &multiSink{sinks: kept}
}

func (m *multiSink) Emit(r Record) {
	for _, s := range m.sinks {
		s.Emit(r)
	}
}
