// Package relay moves bytes between the local terminal and a NUS session:
// Inbound renders notification frames, Outbound streams keystrokes.
package relay

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"
)

// Inbound renders notification frames as text. It implements
// ble.FrameHandler.
type Inbound struct {
	mu   sync.Mutex
	out  io.Writer
	crlf bool
}

// NewInbound returns a handler writing to out. When crlf is set, a bare LF is
// written as CRLF, which a terminal in raw mode needs to return the cursor.
func NewInbound(out io.Writer, crlf bool) *Inbound {
	return &Inbound{out: out, crlf: crlf}
}

// HandleFrame decodes frame and writes it immediately. It never blocks on
// the session state and never drops a frame.
func (in *Inbound) HandleFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}
	text := DecodeFrame(frame)
	if in.crlf {
		text = toCRLF(text)
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if _, err := io.WriteString(in.out, text); err != nil {
		slog.Debug("[RELAY] inbound write", "error", err)
		return
	}
	if f, ok := in.out.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			slog.Debug("[RELAY] inbound flush", "error", err)
		}
	}
}

// DecodeFrame interprets frame as UTF-8, replacing each invalid byte with
// U+FFFD.
func DecodeFrame(frame []byte) string {
	if utf8.Valid(frame) {
		return string(frame)
	}
	var b strings.Builder
	b.Grow(len(frame) + 8)
	for len(frame) > 0 {
		r, size := utf8.DecodeRune(frame)
		b.WriteRune(r)
		frame = frame[size:]
	}
	return b.String()
}

// toCRLF rewrites every LF not already preceded by CR.
func toCRLF(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && (i == 0 || s[i-1] != '\r') {
			b.WriteByte('\r')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
