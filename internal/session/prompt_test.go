package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/chaz8081/nusterm/internal/ble"
)

var twoDevices = []ble.Peripheral{
	{Name: "uart-a", Address: "AA:00:00:00:00:01"},
	{Name: "", Address: "AA:00:00:00:00:02"},
}

func TestPromptListsDevices(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("2\n"), &out)

	idx, err := p.Select(twoDevices)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("Select() = %d, want 1", idx)
	}
	for _, want := range []string{"1 uart-a [AA:00:00:00:00:01]", "2 Unknown [AA:00:00:00:00:02]"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestPromptZeroAborts(t *testing.T) {
	p := NewPrompt(strings.NewReader("0\n"), &bytes.Buffer{})

	if _, err := p.Select(twoDevices); !errors.Is(err, ErrAborted) {
		t.Errorf("Select() error = %v, want ErrAborted", err)
	}
}

func TestPromptRepromptsOnBadInput(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompt(strings.NewReader("abc\n3\n-1\n\n 1 \n"), &out)

	idx, err := p.Select(twoDevices)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if idx != 0 {
		t.Errorf("Select() = %d, want 0", idx)
	}
	if n := strings.Count(out.String(), "Please enter a valid number."); n != 2 {
		t.Errorf("non-numeric messages = %d, want 2", n)
	}
	if n := strings.Count(out.String(), "Invalid selection."); n != 2 {
		t.Errorf("out-of-range messages = %d, want 2", n)
	}
	if n := strings.Count(out.String(), "Select a device by number"); n != 5 {
		t.Errorf("prompts = %d, want 5", n)
	}
}

func TestPromptEOFAborts(t *testing.T) {
	p := NewPrompt(strings.NewReader("9\n"), &bytes.Buffer{})

	if _, err := p.Select(twoDevices); !errors.Is(err, ErrAborted) {
		t.Errorf("Select() error = %v, want ErrAborted", err)
	}
}

func TestPromptLeavesInputAfterSelection(t *testing.T) {
	in := strings.NewReader("1\r\nAT\r")
	p := NewPrompt(in, &bytes.Buffer{})

	idx, err := p.Select(twoDevices)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if idx != 0 {
		t.Errorf("Select() = %d, want 0", idx)
	}
	if in.Len() != len("AT\r") {
		t.Errorf("unread input = %d bytes, want %d", in.Len(), len("AT\r"))
	}
}

func TestPromptFinalLineWithoutNewline(t *testing.T) {
	p := NewPrompt(strings.NewReader("2"), &bytes.Buffer{})

	idx, err := p.Select(twoDevices)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("Select() = %d, want 1", idx)
	}
}

func TestPreferredMatchesAddressOrName(t *testing.T) {
	tests := []struct {
		want string
		idx  int
	}{
		{"aa:00:00:00:00:02", 1},
		{"UART-A", 0},
	}
	for _, tt := range tests {
		idx, err := Preferred{Want: tt.want}.Select(twoDevices)
		if err != nil {
			t.Fatalf("Preferred{%q}.Select() error = %v", tt.want, err)
		}
		if idx != tt.idx {
			t.Errorf("Preferred{%q}.Select() = %d, want %d", tt.want, idx, tt.idx)
		}
	}
}

func TestPreferredFallsBack(t *testing.T) {
	p := Preferred{Want: "missing", Fallback: NewPrompt(strings.NewReader("1\n"), &bytes.Buffer{})}
	idx, err := p.Select(twoDevices)
	if err != nil || idx != 0 {
		t.Errorf("Select() = %d, %v; want 0, nil", idx, err)
	}

	if _, err := (Preferred{Want: "missing"}).Select(twoDevices); !errors.Is(err, ble.ErrNoDeviceFound) {
		t.Errorf("Select() without fallback error = %v, want ErrNoDeviceFound", err)
	}
}

func TestStateString(t *testing.T) {
	if StateActive.String() != "active" {
		t.Errorf("StateActive.String() = %q, want %q", StateActive.String(), "active")
	}
	if State(42).String() != "unknown" {
		t.Errorf("State(42).String() = %q, want %q", State(42).String(), "unknown")
	}
}
