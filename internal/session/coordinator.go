// Package session runs one NUS terminal session from adapter acquisition to
// disconnect: scan, select, resolve, relay until cancelled, tear down.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaz8081/nusterm/internal/ble"
	"github.com/chaz8081/nusterm/internal/rawterm"
	"github.com/chaz8081/nusterm/internal/relay"
)

// ErrPeripheralDisconnected is the cancellation cause when the peripheral
// drops the link during a session.
var ErrPeripheralDisconnected = errors.New("peripheral disconnected")

// Options configures a Coordinator.
type Options struct {
	ScanWindow time.Duration
	Resolve    ble.ResolveOptions
	Outbound   relay.OutboundOptions
	// RawOutput renders inbound LF as CRLF; set when the terminal goes raw.
	RawOutput bool
}

// Coordinator owns the single session of a run.
type Coordinator struct {
	adapter  ble.Adapter
	selector Selector
	term     rawterm.Terminal
	out      io.Writer
	opts     Options

	state atomic.Int32
}

// NewCoordinator wires the coordinator. out receives inbound text, status
// lines and the local newline echo.
func NewCoordinator(adapter ble.Adapter, selector Selector, term rawterm.Terminal, out io.Writer, opts Options) *Coordinator {
	return &Coordinator{
		adapter:  adapter,
		selector: selector,
		term:     term,
		out:      out,
		opts:     opts,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

func (c *Coordinator) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	slog.Debug("[SESSION] state", "from", prev, "to", s)
}

// Run performs one session. It returns nil when the operator ends the
// session (interrupt key, cancelled ctx, 0 at the prompt, end of input) and
// an error for every failure. The peripheral is disconnected and the
// terminal restored before Run returns.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.setState(StateClosed)

	c.setState(StateIdle)
	if err := c.adapter.Enable(); err != nil {
		if !errors.Is(err, ble.ErrNoAdapter) {
			err = fmt.Errorf("%w: %w", ble.ErrNoAdapter, err)
		}
		return err
	}
	fmt.Fprintf(c.out, "Using adapter: %s\n", c.adapter.ID())

	c.setState(StateScanning)
	fmt.Fprintln(c.out, "Scanning for devices...")
	candidates, err := ble.Discover(ctx, c.adapter, c.opts.ScanWindow, ble.ServiceUUID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if len(candidates) == 0 {
		return ble.ErrNoDeviceFound
	}

	c.setState(StateSelecting)
	idx, err := c.selectTarget(ctx, candidates)
	if errors.Is(err, ErrAborted) {
		slog.Info("[SESSION] selection aborted")
		return nil
	}
	if err != nil {
		return err
	}
	target := candidates[idx]

	c.setState(StateResolving)
	fmt.Fprintf(c.out, "\nConnecting to %s (%s)...\n", target.DisplayName(), target.Address)
	sess, err := ble.Resolve(ctx, c.adapter, target, c.opts.Resolve)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	fmt.Fprintln(c.out, "Connected successfully!")

	return c.runActive(ctx, sess)
}

// selectTarget runs the selector and gives up when ctx is done. A selector
// blocked on a read is abandoned; it cannot be interrupted from here.
func (c *Coordinator) selectTarget(ctx context.Context, candidates []ble.Peripheral) (int, error) {
	type selectResult struct {
		idx int
		err error
	}
	ch := make(chan selectResult, 1)
	go func() {
		idx, err := c.selector.Select(candidates)
		ch <- selectResult{idx, err}
	}()

	select {
	case <-ctx.Done():
		return 0, ErrAborted
	case r := <-ch:
		return r.idx, r.err
	}
}

// runActive relays until the cancellation signal is raised and then tears
// the session down.
func (c *Coordinator) runActive(parent context.Context, sess *ble.Session) error {
	defer func() {
		c.setState(StateTerminating)
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("[SESSION] disconnect", "error", cerr)
		}
	}()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	sess.OnDisconnect(func() { cancel(ErrPeripheralDisconnected) })

	inbound := relay.NewInbound(c.out, c.opts.RawOutput)
	if err := sess.Subscribe(inbound); err != nil {
		return err
	}

	c.setState(StateActive)
	fmt.Fprintf(c.out, "\nTerminal started. Press %s to exit.\n", keyName(c.opts.Outbound.Interrupt))

	outbound := relay.NewOutbound(c.term, sess, c.out, c.opts.Outbound)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outbound.Run(ctx, cancel)
	}()

	<-ctx.Done()
	// The outbound relay restores the terminal mode on its way out; wait
	// for it so nothing is printed while the terminal is still raw.
	wg.Wait()

	fmt.Fprintln(c.out, "\r\nExiting...")
	return sessionResult(context.Cause(ctx))
}

// sessionResult maps a cancellation cause to Run's result.
func sessionResult(cause error) error {
	switch {
	case cause == nil,
		errors.Is(cause, relay.ErrInterrupted),
		errors.Is(cause, io.EOF),
		errors.Is(cause, context.Canceled):
		slog.Info("[SESSION] ended", "cause", cause)
		return nil
	default:
		return cause
	}
}

// keyName renders a control byte as "Ctrl+X".
func keyName(b byte) string {
	if b == 0 {
		b = relay.DefaultOutboundOptions().Interrupt
	}
	if b < 0x20 {
		return "Ctrl+" + string(rune('@'+b))
	}
	return fmt.Sprintf("%q", rune(b))
}
