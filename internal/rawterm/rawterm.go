// Package rawterm puts the local terminal into raw mode and reads it one byte
// at a time with a bounded wait, so a reader loop can notice cancellation
// even when no key is pressed.
//
// Two implementations satisfy the same contract: on unix systems Poll uses
// poll(2) on the input descriptor; elsewhere a reader goroutine feeds a
// channel that Poll waits on.
package rawterm

import (
	"errors"
	"os"
	"time"

	"golang.org/x/term"
)

// Terminal is the local input surface.
type Terminal interface {
	// EnterRaw switches the input to raw mode (no line buffering, no echo)
	// and returns a function that restores the original mode. When the
	// input is not a terminal it does nothing and restore is a no-op.
	EnterRaw() (restore func() error, err error)
	// Poll waits up to timeout for input. It reports true when ReadByte
	// will not block.
	Poll(timeout time.Duration) (bool, error)
	// ReadByte reads a single byte. Call it only after Poll reported true.
	ReadByte() (byte, error)
	// IsTerminal reports whether the input is an interactive terminal.
	IsTerminal() bool
}

// ErrClosed is returned by Poll and ReadByte after Close.
var ErrClosed = errors.New("rawterm: closed")

// Stdin returns a Terminal on the process's standard input.
func Stdin() *File {
	return Open(os.Stdin)
}

// IsTerminal reports whether f is an interactive terminal.
func (t *File) IsTerminal() bool {
	return term.IsTerminal(int(t.f.Fd()))
}

// EnterRaw implements Terminal.
func (t *File) EnterRaw() (func() error, error) {
	fd := int(t.f.Fd())
	if !term.IsTerminal(fd) {
		return func() error { return nil }, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	restored := false
	return func() error {
		if restored {
			return nil
		}
		restored = true
		return term.Restore(fd, state)
	}, nil
}

var _ Terminal = (*File)(nil)
