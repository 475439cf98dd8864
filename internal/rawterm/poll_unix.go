//go:build unix

package rawterm

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// File is a Terminal backed by an open file descriptor.
type File struct {
	f *os.File
}

// Open wraps f. The file stays owned by the caller.
func Open(f *os.File) *File {
	return &File{f: f}
}

// Poll implements Terminal with poll(2).
func (t *File) Poll(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(t.f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, err
	}
	// POLLHUP without POLLIN still means a read returns (EOF).
	return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0, nil
}

// ReadByte implements Terminal.
func (t *File) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := t.f.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// Close is a no-op on unix; the descriptor stays owned by the caller.
func (t *File) Close() error { return nil }
