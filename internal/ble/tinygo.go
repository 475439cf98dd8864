package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (BlueZ on Linux, CoreBluetooth on
// macOS, WinRT on Windows).
// On macOS, peripheral addresses are CoreBluetooth UUIDs (not MAC addresses).
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter
	id      string
	probe   []bluetooth.UUID

	// mu protects addresses and connections.
	mu          sync.Mutex
	addresses   map[string]bluetooth.Address // keyed by Peripheral.Address, filled by Scan
	connections map[string]*tinygoConnection
}

// NewTinyGoAdapter creates an adapter on the controller named id (Linux only;
// empty selects the default). Advertisements are probed for each UUID in
// probe to fill Peripheral.Services, since the host stacks do not all expose
// the raw advertised service list.
func NewTinyGoAdapter(id string, probe ...string) (*TinyGoAdapter, error) {
	uuids := make([]bluetooth.UUID, 0, len(probe))
	for _, s := range probe {
		u, err := bluetooth.ParseUUID(NormalizeUUID(s))
		if err != nil {
			return nil, fmt.Errorf("ble: parse probe UUID %q: %w", s, err)
		}
		uuids = append(uuids, u)
	}
	return &TinyGoAdapter{
		adapter:     hostAdapter(id),
		id:          id,
		probe:       uuids,
		addresses:   make(map[string]bluetooth.Address),
		connections: make(map[string]*tinygoConnection),
	}, nil
}

// ID returns the controller id given to NewTinyGoAdapter, or "default".
func (a *TinyGoAdapter) ID() string {
	if a.id == "" {
		return "default"
	}
	return a.id
}

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w: %w", ErrNoAdapter, err)
	}

	// The adapter-level handler fires with connected=false when a
	// peripheral drops the link.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		conn, ok := a.connections[id]
		a.mu.Unlock()
		if ok {
			conn.dropped()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context) ([]Peripheral, error) {
	var mu sync.Mutex
	var found sightings

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stopScan(a.adapter.StopScan, done, stopScanRetry)
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		var services []string
		for _, u := range a.probe {
			if result.HasServiceUUID(u) {
				services = append(services, u.String())
			}
		}

		mu.Lock()
		found.add(Peripheral{
			Name:     result.LocalName(),
			Address:  addr,
			RSSI:     int(result.RSSI),
			Services: services,
		})
		mu.Unlock()

		a.mu.Lock()
		a.addresses[addr] = result.Address
		a.mu.Unlock()
	})
	close(done)

	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("ble: scan: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	return found.peripherals(), nil
}

const stopScanRetry = 20 * time.Millisecond

// stopScan calls stop until it succeeds or done is closed. StopScan fails
// while the host stack is still starting the scan, and a scan that missed its
// stop never returns.
func stopScan(stop func() error, done <-chan struct{}, retry time.Duration) {
	for {
		err := stop()
		if err == nil {
			return
		}
		slog.Debug("[BLE] stop scan, retrying", "error", err)
		select {
		case <-done:
			return
		case <-time.After(retry):
		}
	}
}

func (a *TinyGoAdapter) Connect(ctx context.Context, p Peripheral) (Connection, error) {
	a.mu.Lock()
	addr, ok := a.addresses[p.Address]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("ble: %s was not seen during the scan", p.Address)
	}

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect will eventually time out or succeed.
		// We can't cancel it from here, but we return immediately.
		return nil, ctx.Err()
	case result := <-ch:
		if result.err != nil {
			return nil, result.err
		}
		conn := &tinygoConnection{device: result.device}

		// Track this connection so the adapter-level disconnect handler
		// can find it and fire its OnDisconnect callback.
		a.mu.Lock()
		a.connections[p.Address] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

type tinygoConnection struct {
	device bluetooth.Device

	mu           sync.Mutex
	closed       bool
	disconnectCb func()
}

func (c *tinygoConnection) Services() ([]Service, error) {
	svcs, err := c.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	out := make([]Service, 0, len(svcs))
	for i := range svcs {
		out = append(out, &tinygoService{svc: &svcs[i]})
	}
	return out, nil
}

func (c *tinygoConnection) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.device.Disconnect()
}

func (c *tinygoConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCb = cb
}

// dropped records a peripheral-side disconnect and fires the callback once.
func (c *tinygoConnection) dropped() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cb := c.disconnectCb
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

type tinygoService struct {
	svc *bluetooth.DeviceService
}

func (s *tinygoService) UUID() string { return s.svc.UUID().String() }

func (s *tinygoService) Characteristics() ([]Characteristic, error) {
	chars, err := s.svc.DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	out := make([]Characteristic, 0, len(chars))
	for i := range chars {
		out = append(out, &tinygoCharacteristic{char: &chars[i]})
	}
	return out, nil
}

type tinygoCharacteristic struct {
	char *bluetooth.DeviceCharacteristic

	mu       sync.Mutex
	callback func([]byte)
	enabled  bool
}

func (c *tinygoCharacteristic) UUID() string { return c.char.UUID().String() }

// requestWriter is implemented by host stacks that expose acknowledged writes.
// On BlueZ, WriteWithoutResponse already issues a write request when the
// characteristic supports one.
type requestWriter interface {
	Write(p []byte) (int, error)
}

func (c *tinygoCharacteristic) Write(data []byte) error {
	if w, ok := any(c.char).(requestWriter); ok {
		_, err := w.Write(data)
		return err
	}
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

func (c *tinygoCharacteristic) WriteCommand(data []byte) error {
	_, err := c.char.WriteWithoutResponse(data)
	return err
}

// Subscribe enables notifications once and routes them to cb. A later
// Subscribe only replaces the callback.
func (c *tinygoCharacteristic) Subscribe(cb func([]byte)) error {
	c.mu.Lock()
	c.callback = cb
	enabled := c.enabled
	c.enabled = true
	c.mu.Unlock()
	if enabled {
		return nil
	}

	if err := c.char.EnableNotifications(c.deliver); err != nil {
		c.mu.Lock()
		c.callback = nil
		c.enabled = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe detaches the callback. tinygo has no call that turns
// notifications off; the stream ends when the connection is closed.
func (c *tinygoCharacteristic) Unsubscribe() error {
	c.mu.Lock()
	c.callback = nil
	c.mu.Unlock()
	return nil
}

func (c *tinygoCharacteristic) deliver(buf []byte) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(buf)
	}
}
