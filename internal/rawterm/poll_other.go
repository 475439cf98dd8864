//go:build !unix

package rawterm

import (
	"os"
	"sync"
	"time"
)

// File is a Terminal backed by an open file. Console handles cannot be polled
// portably, so a single reader goroutine pulls bytes into a channel and Poll
// waits on that channel.
type File struct {
	f *os.File

	once    sync.Once
	bytes   chan byte
	errc    chan error
	done    chan struct{}
	pending *byte
	err     error
}

// Open wraps f. The file stays owned by the caller.
func Open(f *os.File) *File {
	return &File{
		f:     f,
		bytes: make(chan byte),
		errc:  make(chan error, 1),
		done:  make(chan struct{}),
	}
}

func (t *File) start() {
	t.once.Do(func() {
		go func() {
			var b [1]byte
			for {
				n, err := t.f.Read(b[:])
				if n == 1 {
					select {
					case t.bytes <- b[0]:
					case <-t.done:
						return
					}
				}
				if err != nil {
					t.errc <- err
					return
				}
			}
		}()
	})
}

// Poll implements Terminal.
func (t *File) Poll(timeout time.Duration) (bool, error) {
	if t.pending != nil || t.err != nil {
		return true, nil
	}
	t.start()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b := <-t.bytes:
		t.pending = &b
		return true, nil
	case err := <-t.errc:
		t.err = err
		return true, nil
	case <-t.done:
		return false, ErrClosed
	case <-timer.C:
		return false, nil
	}
}

// ReadByte implements Terminal.
func (t *File) ReadByte() (byte, error) {
	if t.pending != nil {
		b := *t.pending
		t.pending = nil
		return b, nil
	}
	if t.err != nil {
		return 0, t.err
	}
	t.start()
	select {
	case b := <-t.bytes:
		return b, nil
	case err := <-t.errc:
		t.err = err
		return 0, err
	case <-t.done:
		return 0, ErrClosed
	}
}

// Close stops handing bytes to Poll. A read already blocked in the reader
// goroutine is abandoned.
func (t *File) Close() error {
	select {
	case <-t.done:
	default:
		close(t.done)
	}
	return nil
}
