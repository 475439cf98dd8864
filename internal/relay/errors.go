package relay

import "errors"

var (
	// ErrInterrupted is the cancellation cause when the operator presses
	// the interrupt key.
	ErrInterrupted = errors.New("interrupted by operator")

	// ErrIO wraps a failure reading the terminal or writing the session.
	ErrIO = errors.New("terminal relay i/o failure")
)
