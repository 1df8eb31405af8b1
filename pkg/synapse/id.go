package synapse

import "sync/atomic"

var idCounter atomic.Uint64

// nextID returns a process-unique ID for a signal or effect. IDs are
// monotonically increasing and never reused.
func nextID() uint64 {
	return idCounter.Add(1)
}
