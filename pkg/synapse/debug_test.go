package synapse

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureSink collects records for assertions.
type captureSink struct {
	mu   sync.Mutex
	recs []Record
}

func (c *captureSink) Emit(r Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, r)
}

func (c *captureSink) records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.recs))
	copy(out, c.recs)
	return out
}

func TestDebugDisabledEmitsNothing(t *testing.T) {
	sink := &captureSink{}
	SetSink(sink)
	defer SetSink(nil)

	s := NewSignal(0).WithName("silent")
	s.Set(1)
	_ = s.Get()

	if n := len(sink.records()); n != 0 {
		t.Errorf("expected no records with debug disabled, got %d", n)
	}
}

func TestDebugRecordsReadsAndWrites(t *testing.T) {
	sink := &captureSink{}
	SetDebugMode(true)
	SetSink(sink)
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	s := NewSignal(10).WithName("metered")
	_ = s.Get()
	s.Set(11)
	s.Set(11) // suppressed write still recorded, marked unchanged

	recs := sink.records()
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d: %+v", len(recs), recs)
	}

	read := recs[0]
	if read.Op != OpRead || read.Signal != "metered" {
		t.Errorf("unexpected read record: %+v", read)
	}
	if read.Value != 10 {
		t.Errorf("expected read value 10, got %v", read.Value)
	}

	write := recs[1]
	if write.Op != OpWrite || write.From != 10 || write.To != 11 || !write.Changed {
		t.Errorf("unexpected write record: %+v", write)
	}

	suppressed := recs[2]
	if suppressed.Op != OpWrite || suppressed.Changed {
		t.Errorf("expected suppressed write record, got %+v", suppressed)
	}

	// Sequence numbers are monotonic
	if !(read.Seq < write.Seq && write.Seq < suppressed.Seq) {
		t.Errorf("expected increasing seq, got %d %d %d", read.Seq, write.Seq, suppressed.Seq)
	}
}

func TestDebugRecordsSubscriberCount(t *testing.T) {
	sink := &captureSink{}
	SetDebugMode(true)
	SetSink(sink)
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	s := NewSignal(0).WithName("watched")
	e := CreateEffect(func() Cleanup {
		_ = s.Get()
		return nil
	})
	defer e.Dispose()

	s.Set(1)

	var writeRec Record
	found := false
	for _, r := range sink.records() {
		if r.Op == OpWrite && r.Signal == "watched" {
			writeRec = r
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected a write record")
	}
	if writeRec.Subscribers != 1 {
		t.Errorf("expected 1 subscriber in record, got %d", writeRec.Subscribers)
	}
}

func TestDebugSinkPanicContained(t *testing.T) {
	SetDebugMode(true)
	SetSink(panickySink{})
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	s := NewSignal(0)
	// A panicking sink must never break the write path
	s.Set(1)
	if s.Get() != 1 {
		t.Errorf("expected 1, got %d", s.Get())
	}
}

type panickySink struct{}

func (panickySink) Emit(Record) { panic("sink failure") }

func TestMultiSinkFansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	SetDebugMode(true)
	SetSink(NewMultiSink(a, b))
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	NewSignal(0).WithName("fan").Set(1)

	if len(a.records()) != 1 || len(b.records()) != 1 {
		t.Errorf("expected both sinks to receive the record, got %d and %d",
			len(a.records()), len(b.records()))
	}
}

func TestSlogSinkFormatsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	SetDebugMode(true)
	SetSink(NewSlogSink(logger))
	defer func() {
		SetSink(nil)
		SetDebugMode(false)
	}()

	NewSignal("old").WithName("greeting").Set("new")

	out := buf.String()
	if !strings.Contains(out, "greeting") {
		t.Errorf("expected signal name in log output, got %q", out)
	}
	if !strings.Contains(out, string(OpWrite)) {
		t.Errorf("expected op in log output, got %q", out)
	}
}

func TestSetDebugModeToggle(t *testing.T) {
	sink := &captureSink{}
	SetSink(sink)
	defer SetSink(nil)

	s := NewSignal(0).WithName("toggle")

	SetDebugMode(true)
	s.Set(1)
	SetDebugMode(false)
	s.Set(2)

	recs := sink.records()
	if len(recs) != 1 {
		t.Fatalf("expected exactly 1 record from the enabled window, got %d", len(recs))
	}
	if recs[0].To != 1 {
		t.Errorf("expected the enabled-window write, got %+v", recs[0])
	}
}
