package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/nusterm/internal/ble"
	"github.com/chaz8081/nusterm/internal/config"
	"github.com/chaz8081/nusterm/internal/rawterm"
	"github.com/chaz8081/nusterm/internal/relay"
	"github.com/chaz8081/nusterm/internal/session"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/nusterm/config.yaml)")
	device := flag.String("device", "", "address or name of the device to connect to without prompting")
	scanOnly := flag.Bool("scan", false, "list devices advertising NUS and exit")
	scanWindow := flag.Duration("window", 0, "scan duration (overrides ble.scan_window)")
	adapterID := flag.String("adapter", "", "bluetooth adapter id, linux only (overrides ble.adapter)")
	initConfig := flag.Bool("init-config", false, "write the default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *device != "" {
		cfg.BLE.Device = *device
	}
	if *scanWindow > 0 {
		cfg.BLE.ScanWindow = *scanWindow
	}
	if *adapterID != "" {
		cfg.BLE.Adapter = *adapterID
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	if err := run(cfg, *scanOnly); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, scanOnly bool) error {
	adapter, err := ble.NewTinyGoAdapter(cfg.BLE.Adapter, ble.ServiceUUID)
	if err != nil {
		return err
	}

	// Signal handling for graceful shutdown. In raw mode Ctrl+C arrives as
	// a keystroke instead; this covers the prompt, the scan and SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if scanOnly {
		return listDevices(ctx, adapter, cfg.BLE.ScanWindow)
	}

	opts, err := sessionOptions(cfg)
	if err != nil {
		return err
	}

	term := rawterm.Stdin()
	defer term.Close()
	opts.RawOutput = term.IsTerminal()

	var selector session.Selector = session.NewPrompt(os.Stdin, os.Stdout)
	if cfg.BLE.Device != "" {
		selector = session.Preferred{Want: cfg.BLE.Device, Fallback: selector}
	}

	start := time.Now()
	err = session.NewCoordinator(adapter, selector, term, os.Stdout, opts).Run(ctx)
	slog.Debug("session finished", "elapsed", time.Since(start).Round(time.Millisecond))
	return err
}

// listDevices prints the NUS candidates one scan window finds.
func listDevices(ctx context.Context, adapter *ble.TinyGoAdapter, window time.Duration) error {
	if err := adapter.Enable(); err != nil {
		return err
	}
	fmt.Println("Scanning for devices...")
	found, err := ble.Discover(ctx, adapter, window, ble.ServiceUUID)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if len(found) == 0 {
		return ble.ErrNoDeviceFound
	}
	for i, p := range found {
		fmt.Printf("%d %s [%s] rssi=%d\n", i+1, p.DisplayName(), p.Address, p.RSSI)
	}
	return nil
}

// sessionOptions translates the validated config into coordinator options.
func sessionOptions(cfg *config.Config) (session.Options, error) {
	match, ok := ble.ParseMatchMode(cfg.BLE.Match)
	if !ok {
		return session.Options{}, fmt.Errorf("unknown match mode %q", cfg.BLE.Match)
	}
	interrupt, err := config.ParseKey(cfg.Terminal.InterruptKey)
	if err != nil {
		return session.Options{}, err
	}
	newline, err := config.ParseNewline(cfg.Terminal.Newline)
	if err != nil {
		return session.Options{}, err
	}

	return session.Options{
		ScanWindow: cfg.BLE.ScanWindow,
		Resolve: ble.ResolveOptions{
			Match:        match,
			WriteCommand: cfg.BLE.WriteMode == "command",
		},
		Outbound: relay.OutboundOptions{
			PollInterval: cfg.Terminal.PollInterval,
			Interrupt:    interrupt,
			Newline:      newline,
		},
	}, nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return cfg, nil
	}

	// No config file, use defaults
	return config.Default(), nil
}
