package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/chaz8081/nusterm/internal/rawterm"
)

// Sender writes one input unit to the peripheral. *ble.Session satisfies it.
type Sender interface {
	Write(data []byte) error
}

// OutboundOptions configures the keystroke loop.
type OutboundOptions struct {
	PollInterval time.Duration // bound on shutdown latency (default 100ms)
	Interrupt    byte          // ends the session without being sent (default ETX, Ctrl-C)
	Newline      []byte        // sent in place of CR (default LF)
}

// DefaultOutboundOptions returns the defaults.
func DefaultOutboundOptions() OutboundOptions {
	return OutboundOptions{
		PollInterval: 100 * time.Millisecond,
		Interrupt:    0x03,
		Newline:      []byte{'\n'},
	}
}

// Outbound streams keystrokes from the terminal to a Sender.
type Outbound struct {
	term rawterm.Terminal
	dst  Sender
	echo io.Writer
	opts OutboundOptions

	held []byte // read past the end of a truncated rune, starts the next unit
}

// NewOutbound creates the outbound relay. echo receives the local newline
// printed when Enter is pressed.
func NewOutbound(term rawterm.Terminal, dst Sender, echo io.Writer, opts OutboundOptions) *Outbound {
	def := DefaultOutboundOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.Interrupt == 0 {
		opts.Interrupt = def.Interrupt
	}
	if len(opts.Newline) == 0 {
		opts.Newline = def.Newline
	}
	return &Outbound{term: term, dst: dst, echo: echo, opts: opts}
}

// Run puts the terminal in raw mode and relays input units until ctx is
// done. It ends the session through cancel when the operator presses the
// interrupt key (ErrInterrupted), input reaches EOF (io.EOF), or reading or
// writing fails (ErrIO). The terminal mode is restored before Run returns.
// Run it in a goroutine.
func (o *Outbound) Run(ctx context.Context, cancel context.CancelCauseFunc) {
	restore, err := o.term.EnterRaw()
	if err != nil {
		cancel(fmt.Errorf("%w: enter raw mode: %w", ErrIO, err))
		return
	}
	defer func() {
		if err := restore(); err != nil {
			slog.Warn("[RELAY] restore terminal mode", "error", err)
		}
	}()

	if err := o.loop(ctx); err != nil {
		cancel(err)
	}
}

func (o *Outbound) loop(ctx context.Context) error {
	for ctx.Err() == nil {
		if len(o.held) == 0 {
			ready, err := o.term.Poll(o.opts.PollInterval)
			if err != nil {
				return fmt.Errorf("%w: poll input: %w", ErrIO, err)
			}
			if !ready {
				continue
			}
		}

		unit, err := o.readUnit()
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Debug("[RELAY] input closed")
				return io.EOF
			}
			return fmt.Errorf("%w: read input: %w", ErrIO, err)
		}

		if len(unit) == 1 {
			switch unit[0] {
			case o.opts.Interrupt:
				return ErrInterrupted
			case '\r':
				unit = o.opts.Newline
				if _, err := io.WriteString(o.echo, "\r\n"); err != nil {
					slog.Debug("[RELAY] local echo", "error", err)
				}
			}
		}

		if err := o.dst.Write(unit); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	return nil
}

// readUnit reads one keystroke: a single byte, or every byte of a UTF-8
// encoded rune. A sequence cut short by a byte that is not a continuation
// byte is returned without it; that byte starts the next unit.
func (o *Outbound) readUnit() ([]byte, error) {
	b, err := o.readByte()
	if err != nil {
		return nil, err
	}
	n := runeLen(b)
	unit := make([]byte, 1, n)
	unit[0] = b
	for len(unit) < n {
		c, err := o.term.ReadByte()
		if err != nil {
			return nil, err
		}
		if utf8.RuneStart(c) {
			o.held = append(o.held, c)
			break
		}
		unit = append(unit, c)
	}
	return unit, nil
}

func (o *Outbound) readByte() (byte, error) {
	if len(o.held) > 0 {
		b := o.held[0]
		o.held = o.held[1:]
		return b, nil
	}
	return o.term.ReadByte()
}

// runeLen returns the encoded length announced by a UTF-8 lead byte, or 1.
func runeLen(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	}
	return 1
}
