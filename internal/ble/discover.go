package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultScanWindow is how long Discover scans when no window is given.
const DefaultScanWindow = 5 * time.Second

// Discover scans for window and returns the peripherals advertising target,
// in the order the adapter first saw them. An empty result is not an error.
// The adapter must already be enabled.
func Discover(ctx context.Context, adapter Adapter, window time.Duration, target string) ([]Peripheral, error) {
	if window <= 0 {
		window = DefaultScanWindow
	}

	scanCtx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	slog.Debug("[BLE] scanning", "window", window)
	seen, err := adapter.Scan(scanCtx)
	if err != nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := FilterByService(seen, target)
	slog.Debug("[BLE] scan finished", "seen", len(seen), "matched", len(matched))
	return matched, nil
}

// FilterByService keeps the peripherals whose advertised service set
// contains target, preserving order.
func FilterByService(peripherals []Peripheral, target string) []Peripheral {
	var out []Peripheral
	for _, p := range peripherals {
		if NewUUIDSet(p.Services...).Contains(target) {
			out = append(out, p)
		}
	}
	return out
}

// sightings accumulates scan results by address in first-seen order. A repeat
// sighting merges into the first record: an empty name is filled in, RSSI is
// refreshed and advertised services are unioned. Advertising and scan
// response packets can arrive as separate results, and NUS peripherals
// commonly carry the service UUID only in the scan response.
type sightings struct {
	list  []Peripheral
	index map[string]int
}

func (s *sightings) add(p Peripheral) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	i, ok := s.index[p.Address]
	if !ok {
		s.index[p.Address] = len(s.list)
		p.Services = append([]string(nil), p.Services...)
		s.list = append(s.list, p)
		return
	}

	rec := &s.list[i]
	if rec.Name == "" {
		rec.Name = p.Name
	}
	rec.RSSI = p.RSSI
	known := NewUUIDSet(rec.Services...)
	for _, u := range p.Services {
		if !known.Contains(u) {
			rec.Services = append(rec.Services, u)
			known[NormalizeUUID(u)] = struct{}{}
		}
	}
}

// peripherals returns a copy of the accumulated records.
func (s *sightings) peripherals() []Peripheral {
	return append([]Peripheral(nil), s.list...)
}
