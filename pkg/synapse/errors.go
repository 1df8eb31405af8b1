package synapse

import "fmt"

// SignalError wraps a failure raised inside a signal accessor: a panicking
// updater passed to Update, or a panicking custom equality function. It is
// re-panicked synchronously to the caller of the accessor, so writers can
// distinguish cell failures from ordinary panics:
//
//	defer func() {
//	    var serr *synapse.SignalError
//	    if r := recover(); r != nil {
//	        if err, ok := r.(error); ok && errors.As(err, &serr) {
//	            // cell-level failure; the write did not happen
//	        }
//	    }
//	}()
//
// Cell failures are fatal to the call and never retried; failures inside
// effect bodies are handled by the effect's own retry machinery and never
// surface as SignalError.
type SignalError struct {
	// Signal is the diagnostic label of the signal involved.
	Signal string

	// Op is the accessor that failed ("set", "update", "get").
	Op string

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *SignalError) Error() string {
	return fmt.Sprintf("synapse: signal %s: %s: %v", e.Signal, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SignalError) Unwrap() error {
	return e.Err
}

// normalizePanic converts a recovered panic value into an error. Values
// that already are errors pass through; everything else is stringified.
func normalizePanic(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}
