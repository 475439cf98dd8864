package rawterm

import (
	"io"
	"os"
	"testing"
	"time"
)

func newPipe(t *testing.T) (*File, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	tf := Open(r)
	t.Cleanup(func() { tf.Close() })
	return tf, w
}

func TestPollTimesOutWithoutInput(t *testing.T) {
	tf, _ := newPipe(t)

	start := time.Now()
	ready, err := tf.Poll(50 * time.Millisecond)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if ready {
		t.Error("Poll() reported ready with no input")
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Poll() returned after %v, want about 50ms", elapsed)
	}
}

func TestPollThenReadByte(t *testing.T) {
	tf, w := newPipe(t)
	if _, err := w.Write([]byte("AT")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, want := range []byte("AT") {
		ready, err := tf.Poll(time.Second)
		if err != nil {
			t.Fatalf("Poll() error = %v", err)
		}
		if !ready {
			t.Fatal("Poll() not ready with pending input")
		}
		got, err := tf.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadByte() = %q, want %q", got, want)
		}
	}
}

func TestReadByteEOF(t *testing.T) {
	tf, w := newPipe(t)
	w.Close()

	ready, err := tf.Poll(time.Second)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if !ready {
		t.Fatal("Poll() should report ready at EOF so the read can observe it")
	}
	if _, err := tf.ReadByte(); err != io.EOF {
		t.Errorf("ReadByte() error = %v, want io.EOF", err)
	}
}

func TestEnterRawOnPipeIsNoop(t *testing.T) {
	tf, _ := newPipe(t)
	if tf.IsTerminal() {
		t.Fatal("a pipe should not be a terminal")
	}
	restore, err := tf.EnterRaw()
	if err != nil {
		t.Fatalf("EnterRaw() error = %v", err)
	}
	if err := restore(); err != nil {
		t.Errorf("restore() error = %v", err)
	}
}
