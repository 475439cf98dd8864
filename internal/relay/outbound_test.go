package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"testing"
	"time"
)

func fastOptions() OutboundOptions {
	opts := DefaultOutboundOptions()
	opts.PollInterval = 5 * time.Millisecond
	return opts
}

// runOutbound runs the relay until it cancels or the timeout expires and
// returns the cancellation cause.
func runOutbound(t *testing.T, term *fakeTerminal, dst Sender, echo *bytes.Buffer, opts OutboundOptions) error {
	t.Helper()
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	done := make(chan struct{})
	go func() {
		NewOutbound(term, dst, echo, opts).Run(ctx, cancel)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Outbound.Run did not return")
	}
	return context.Cause(ctx)
}

func TestOutboundTranslatesCarriageReturn(t *testing.T) {
	term := newFakeTerminal("AT\r\x03")
	dst := &recordingSender{}
	var echo bytes.Buffer

	cause := runOutbound(t, term, dst, &echo, fastOptions())

	if !errors.Is(cause, ErrInterrupted) {
		t.Errorf("cause = %v, want ErrInterrupted", cause)
	}
	want := []string{"A", "T", "\n"}
	if got := dst.Writes(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
	if echo.String() != "\r\n" {
		t.Errorf("local echo = %q, want %q", echo.String(), "\r\n")
	}
	if term.isRaw() {
		t.Error("terminal mode not restored")
	}
	if term.restored != 1 {
		t.Errorf("restored %d times, want 1", term.restored)
	}
}

func TestOutboundPrintableRoundTrip(t *testing.T) {
	input := "hello, world! 0123456789 ~`"
	term := newFakeTerminal(input + "\x03")
	dst := &recordingSender{}

	runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	got := dst.Writes()
	if len(got) != len(input) {
		t.Fatalf("got %d writes, want %d", len(got), len(input))
	}
	for i := range input {
		if got[i] != input[i:i+1] {
			t.Errorf("write[%d] = %q, want %q", i, got[i], input[i:i+1])
		}
	}
}

func TestOutboundInterruptIsNotSent(t *testing.T) {
	term := newFakeTerminal("\x03ignored")
	dst := &recordingSender{}

	cause := runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	if !errors.Is(cause, ErrInterrupted) {
		t.Errorf("cause = %v, want ErrInterrupted", cause)
	}
	if len(dst.Writes()) != 0 {
		t.Errorf("writes = %q, want none", dst.Writes())
	}
}

func TestOutboundCustomInterruptAndNewline(t *testing.T) {
	opts := fastOptions()
	opts.Interrupt = 0x18 // Ctrl-X
	opts.Newline = []byte("\r\n")
	term := newFakeTerminal("a\x03\r\x18")
	dst := &recordingSender{}

	runOutbound(t, term, dst, &bytes.Buffer{}, opts)

	want := []string{"a", "\x03", "\r\n"}
	if got := dst.Writes(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
}

func TestOutboundMultiByteRuneIsOneUnit(t *testing.T) {
	term := newFakeTerminal("é€\x03")
	dst := &recordingSender{}

	runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	want := []string{"é", "€"}
	if got := dst.Writes(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
}

func TestOutboundTruncatedRuneKeepsNextByte(t *testing.T) {
	term := newFakeTerminal("\xC3a\xE2\x82\x03")
	dst := &recordingSender{}

	cause := runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	if !errors.Is(cause, ErrInterrupted) {
		t.Errorf("cause = %v, want ErrInterrupted", cause)
	}
	want := []string{"\xC3", "a", "\xE2\x82"}
	if got := dst.Writes(); !reflect.DeepEqual(got, want) {
		t.Errorf("writes = %q, want %q", got, want)
	}
}

func TestOutboundWriteFailureCancels(t *testing.T) {
	term := newFakeTerminal("x")
	dst := &recordingSender{err: errors.New("link lost")}

	cause := runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	if !errors.Is(cause, ErrIO) {
		t.Errorf("cause = %v, want ErrIO", cause)
	}
	if term.isRaw() {
		t.Error("terminal mode not restored after write failure")
	}
}

func TestOutboundPollFailureCancels(t *testing.T) {
	term := newFakeTerminal("")
	term.pollErr = errors.New("bad descriptor")

	cause := runOutbound(t, term, &recordingSender{}, &bytes.Buffer{}, fastOptions())

	if !errors.Is(cause, ErrIO) {
		t.Errorf("cause = %v, want ErrIO", cause)
	}
}

func TestOutboundEOFEndsSession(t *testing.T) {
	term := newFakeTerminal("ok")
	term.eof = true
	dst := &recordingSender{}

	cause := runOutbound(t, term, dst, &bytes.Buffer{}, fastOptions())

	if !errors.Is(cause, io.EOF) {
		t.Errorf("cause = %v, want io.EOF", cause)
	}
	if got := dst.Writes(); !reflect.DeepEqual(got, []string{"o", "k"}) {
		t.Errorf("writes = %q, want [o k]", got)
	}
}

func TestOutboundStopsOnCancellation(t *testing.T) {
	term := newFakeTerminal("")
	ctx, cancel := context.WithCancelCause(context.Background())

	done := make(chan struct{})
	go func() {
		NewOutbound(term, &recordingSender{}, &bytes.Buffer{}, fastOptions()).Run(ctx, cancel)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if !term.isRaw() {
		t.Error("terminal should be raw while the relay runs")
	}
	cancel(errors.New("stop"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Outbound.Run did not observe cancellation")
	}
	if term.isRaw() {
		t.Error("terminal mode not restored after cancellation")
	}
}

func TestRuneLen(t *testing.T) {
	tests := []struct {
		b    byte
		want int
	}{
		{'a', 1},
		{0xC3, 2},
		{0xE2, 3},
		{0xF0, 4},
		{0x80, 1},
		{0xFF, 1},
	}
	for _, tt := range tests {
		if got := runeLen(tt.b); got != tt.want {
			t.Errorf("runeLen(0x%02x) = %d, want %d", tt.b, got, tt.want)
		}
	}
}
