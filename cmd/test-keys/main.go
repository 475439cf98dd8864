// Command test-keys is a manual test for the raw terminal.
// It switches stdin to raw mode and prints every byte it reads, so key
// codes (Enter, Ctrl+C, arrows, multibyte characters) can be inspected.
// Press Ctrl+C to exit.
//
// Usage:
//
//	go run ./cmd/test-keys [--poll 100ms]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chaz8081/nusterm/internal/rawterm"
)

func main() {
	poll := flag.Duration("poll", 100*time.Millisecond, "poll interval")
	flag.Parse()

	term := rawterm.Stdin()
	defer term.Close()

	if !term.IsTerminal() {
		fmt.Println("stdin is not a terminal; bytes are read as-is.")
	}

	restore, err := term.EnterRaw()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer restore()

	fmt.Print("Press keys to see their bytes. Press Ctrl+C to exit.\r\n")

	idle := 0
	for {
		ready, err := term.Poll(*poll)
		if err != nil {
			fmt.Printf("poll: %v\r\n", err)
			return
		}
		if !ready {
			idle++
			continue
		}
		b, err := term.ReadByte()
		if err != nil {
			fmt.Printf("read: %v\r\n", err)
			return
		}
		fmt.Printf("0x%02x %q (after %d idle polls)\r\n", b, rune(b), idle)
		idle = 0
		if b == 0x03 {
			fmt.Print("Done.\r\n")
			return
		}
	}
}
