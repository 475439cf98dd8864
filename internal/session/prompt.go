package session

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chaz8081/nusterm/internal/ble"
)

// ErrAborted is returned when the operator declines to pick a device.
var ErrAborted = errors.New("no device selected")

// Selector picks one of the discovered peripherals.
type Selector interface {
	// Select returns an index into candidates, or ErrAborted.
	Select(candidates []ble.Peripheral) (int, error)
}

// Prompt is the interactive numbered device menu.
type Prompt struct {
	in  io.Reader
	out io.Writer
}

// NewPrompt returns a Prompt reading lines from in and writing to out. Lines
// are read a byte at a time, so whatever follows the selection stays in in
// for the terminal relay.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out}
}

// Select lists candidates as "N name [address]" and reads a number until it
// gets 0 (abort) or a valid index. Bad input is reported and re-prompted.
// End of input aborts.
func (p *Prompt) Select(candidates []ble.Peripheral) (int, error) {
	fmt.Fprintln(p.out, "\nDevices advertising NUS service:")
	for i, c := range candidates {
		fmt.Fprintf(p.out, "%d %s [%s]\n", i+1, c.DisplayName(), c.Address)
	}

	for {
		fmt.Fprint(p.out, "\nSelect a device by number (or 0 to exit): ")
		line, err := p.readLine()
		if err != nil {
			fmt.Fprintln(p.out)
			if errors.Is(err, io.EOF) {
				return 0, ErrAborted
			}
			return 0, fmt.Errorf("session: read selection: %w", err)
		}

		n, err := strconv.Atoi(strings.TrimSpace(line))
		switch {
		case err != nil:
			fmt.Fprintln(p.out, "Please enter a valid number.")
		case n == 0:
			return 0, ErrAborted
		case n < 1 || n > len(candidates):
			fmt.Fprintln(p.out, "Invalid selection.")
		default:
			return n - 1, nil
		}
	}
}

// readLine reads up to and including the next LF. A final line without LF
// is returned as is; io.EOF means no input was left.
func (p *Prompt) readLine() (string, error) {
	var line []byte
	var b [1]byte
	for {
		n, err := p.in.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				return string(line), nil
			}
			line = append(line, b[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}

// Preferred selects the candidate whose address or name equals want
// (case-insensitive) and falls back to another Selector otherwise.
type Preferred struct {
	Want     string
	Fallback Selector
}

func (p Preferred) Select(candidates []ble.Peripheral) (int, error) {
	for i, c := range candidates {
		if strings.EqualFold(c.Address, p.Want) || (c.Name != "" && strings.EqualFold(c.Name, p.Want)) {
			return i, nil
		}
	}
	if p.Fallback == nil {
		return 0, fmt.Errorf("session: device %q not found: %w", p.Want, ble.ErrNoDeviceFound)
	}
	return p.Fallback.Select(candidates)
}
