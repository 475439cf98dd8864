package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	BLE      BLEConfig      `yaml:"ble"`
	Terminal TerminalConfig `yaml:"terminal"`
	LogLevel string         `yaml:"log_level"`
}

// BLEConfig holds scanning and connection settings.
type BLEConfig struct {
	Adapter    string        `yaml:"adapter"`     // linux controller id, e.g. "hci1"; empty = default
	ScanWindow time.Duration `yaml:"scan_window"` // how long to scan before listing devices
	Device     string        `yaml:"device"`      // address or name to select without prompting
	Match      string        `yaml:"match"`       // "exact" or "substring"
	WriteMode  string        `yaml:"write_mode"`  // "request" or "command"
}

// TerminalConfig holds local terminal settings.
type TerminalConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	InterruptKey string        `yaml:"interrupt_key"` // "ctrl-c", "ctrl-x", "ctrl-]"
	Newline      string        `yaml:"newline"`       // sent for Enter: "lf", "cr" or "crlf"
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nusterm")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BLE: BLEConfig{
			ScanWindow: 5 * time.Second,
			Match:      "exact",
			WriteMode:  "request",
		},
		Terminal: TerminalConfig{
			PollInterval: 100 * time.Millisecond,
			InterruptKey: "ctrl-c",
			Newline:      "lf",
		},
		LogLevel: "warn",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(expandTilde(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.BLE.ScanWindow <= 0 {
		return fmt.Errorf("ble.scan_window must be > 0")
	}

	switch c.BLE.Match {
	case "exact", "substring":
	default:
		return fmt.Errorf("ble.match must be \"exact\" or \"substring\", got %q", c.BLE.Match)
	}

	switch c.BLE.WriteMode {
	case "request", "command":
	default:
		return fmt.Errorf("ble.write_mode must be \"request\" or \"command\", got %q", c.BLE.WriteMode)
	}

	if c.Terminal.PollInterval <= 0 {
		return fmt.Errorf("terminal.poll_interval must be > 0")
	}
	if c.Terminal.PollInterval > time.Second {
		return fmt.Errorf("terminal.poll_interval must be at most 1s, got %s", c.Terminal.PollInterval)
	}

	if _, err := ParseKey(c.Terminal.InterruptKey); err != nil {
		return fmt.Errorf("terminal.interrupt_key: %w", err)
	}

	if _, err := ParseNewline(c.Terminal.Newline); err != nil {
		return fmt.Errorf("terminal.newline: %w", err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog level. Unknown values
// map to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseKey parses a control key name ("ctrl-c", "Ctrl+X", "ctrl-]") into the
// byte the terminal sends for it in raw mode.
func ParseKey(s string) (byte, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.Replace(name, "+", "-", 1)
	key, ok := strings.CutPrefix(name, "ctrl-")
	if !ok || len(key) != 1 {
		return 0, fmt.Errorf("want ctrl-<key>, got %q", s)
	}
	switch c := key[0]; {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 1, nil
	case c == '[', c == '\\', c == ']', c == '^', c == '_':
		return c - '@', nil
	}
	return 0, fmt.Errorf("unsupported control key %q", s)
}

// ParseNewline returns the bytes sent to the peripheral for Enter.
func ParseNewline(s string) ([]byte, error) {
	switch strings.ToLower(s) {
	case "lf":
		return []byte("\n"), nil
	case "cr":
		return []byte("\r"), nil
	case "crlf":
		return []byte("\r\n"), nil
	}
	return nil, fmt.Errorf("want lf, cr or crlf, got %q", s)
}

const defaultFileHeader = `# nusterm configuration
#
# ble.adapter        controller id (linux only), empty for the default adapter
# ble.scan_window    how long to scan before listing devices
# ble.device         address or name to connect to without prompting
# ble.match          characteristic UUID matching: exact or substring
# ble.write_mode     request (acknowledged) or command (without response)
# terminal.poll_interval  how often the keyboard loop checks for shutdown (at most 1s)
# terminal.interrupt_key  control key that ends the session
# terminal.newline   bytes sent for Enter: lf, cr or crlf
# log_level          debug, info, warn or error
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the path written, or "" if a config file already exists there.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultFileHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
