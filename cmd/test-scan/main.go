// Command test-scan is a manual test for NUS discovery.
// It scans for the given window and lists every device advertising the
// Nordic UART Service, without connecting.
//
// Usage:
//
//	go run ./cmd/test-scan [--window 5s] [--adapter hci0]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/nusterm/internal/ble"
)

func main() {
	window := flag.Duration("window", ble.DefaultScanWindow, "scan duration")
	adapterID := flag.String("adapter", "", "bluetooth adapter id (linux only)")
	flag.Parse()

	adapter, err := ble.NewTinyGoAdapter(*adapterID, ble.ServiceUUID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := adapter.Enable(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Handle Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scanning for %s...\n", *window)
	start := time.Now()
	found, err := ble.Discover(ctx, adapter, *window, ble.ServiceUUID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scan finished in %s, %d NUS device(s):\n", time.Since(start).Round(time.Millisecond), len(found))
	for i, p := range found {
		fmt.Printf("%d. %s [%s] rssi=%d\n", i+1, p.DisplayName(), p.Address, p.RSSI)
	}
}
