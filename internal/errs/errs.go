// Package errs defines the sentinel error kinds shared across the
// controller's protocol layers.
package errs

import "errors"

// Sentinel errors classifying a failure at any protocol layer. Callers
// compare against these with errors.Is after wrapping with fmt.Errorf("%w").
var (
	// ErrWireFormat indicates a buffer could not be decoded: a length
	// mismatch, a reserved value, or an unknown type/opcode.
	ErrWireFormat = errors.New("wire format error")

	// ErrWrongState indicates a command arrived while the controller or
	// a data link was not in a state that permits it.
	ErrWrongState = errors.New("wrong state")

	// ErrNoActiveEndpoint indicates an operation needs an active remote
	// endpoint but none is selected.
	ErrNoActiveEndpoint = errors.New("no active endpoint")

	// ErrResourceExhausted indicates a queue or buffer allocation failed.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// Violation panics to signal a reachable-but-impossible state transition.
// It is recovered only at the two boundary goroutines (register-block
// dispatch, console dispatch); nowhere else should recover it.
type Violation struct {
	Msg string
}

func (v *Violation) Error() string { return "invariant violation: " + v.Msg }

// Panic raises a Violation. Call it for transitions the state machines in
// this module declare unreachable.
func Panic(msg string) {
	panic(&Violation{Msg: msg})
}
