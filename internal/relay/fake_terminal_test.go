package relay

import (
	"errors"
	"io"
	"sync"
	"time"
)

// fakeTerminal serves scripted input. Once the script is exhausted Poll
// reports not-ready (after sleeping the timeout) unless eof is set.
type fakeTerminal struct {
	mu       sync.Mutex
	input    []byte
	eof      bool
	pollErr  error
	readErr  error
	raw      bool
	restored int
	entered  int
}

func newFakeTerminal(input string) *fakeTerminal {
	return &fakeTerminal{input: []byte(input)}
}

func (f *fakeTerminal) EnterRaw() (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered++
	f.raw = true
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.raw = false
		f.restored++
		return nil
	}, nil
}

func (f *fakeTerminal) Poll(timeout time.Duration) (bool, error) {
	f.mu.Lock()
	ready := len(f.input) > 0 || f.eof || f.readErr != nil
	err := f.pollErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	if !ready {
		time.Sleep(timeout)
	}
	return ready, nil
}

func (f *fakeTerminal) ReadByte() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.input) == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		if f.eof {
			return 0, io.EOF
		}
		return 0, errors.New("fake: read would block")
	}
	b := f.input[0]
	f.input = f.input[1:]
	return b, nil
}

func (f *fakeTerminal) IsTerminal() bool { return true }

func (f *fakeTerminal) isRaw() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw
}

// recordingSender records every write.
type recordingSender struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (s *recordingSender) Write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes = append(s.writes, append([]byte(nil), data...))
	return nil
}

func (s *recordingSender) Writes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.writes))
	for i, w := range s.writes {
		out[i] = string(w)
	}
	return out
}
