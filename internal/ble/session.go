package ble

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// FrameHandler receives notification frames from the notify characteristic.
// HandleFrame is called on the BLE stack's delivery goroutine and must not
// block.
type FrameHandler interface {
	HandleFrame(frame []byte)
}

// ResolveOptions configures how a connected peripheral is resolved.
type ResolveOptions struct {
	Match        MatchMode // how characteristic UUIDs are compared
	WriteCommand bool      // use write-without-response instead of write requests
}

// Session is the single active connection to a NUS peripheral with its
// service and both characteristics resolved.
type Session struct {
	Peripheral Peripheral

	conn    Connection
	service Service
	write   Characteristic
	notify  Characteristic
	opts    ResolveOptions

	mu         sync.Mutex
	subscribed bool

	closeOnce sync.Once
}

// Resolve connects to p and locates the NUS service and its write and notify
// characteristics. On any failure after connecting, the peripheral is
// disconnected before the error is returned.
func Resolve(ctx context.Context, adapter Adapter, p Peripheral, opts ResolveOptions) (*Session, error) {
	conn, err := adapter.Connect(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w: %w", p.Address, ErrConnectionFailed, err)
	}

	s, err := resolveConnection(conn, opts)
	if err != nil {
		if derr := conn.Disconnect(); derr != nil {
			slog.Warn("[BLE] disconnect after failed resolve", "error", derr)
		}
		return nil, err
	}
	s.Peripheral = p
	slog.Info("[BLE] session resolved", "address", p.Address,
		"write", s.write.UUID(), "notify", s.notify.UUID())
	return s, nil
}

func resolveConnection(conn Connection, opts ResolveOptions) (*Session, error) {
	services, err := conn.Services()
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w: %w", ErrServiceNotFound, err)
	}

	var service Service
	for _, svc := range services {
		if EqualUUID(svc.UUID(), ServiceUUID) {
			service = svc
			break
		}
	}
	if service == nil {
		return nil, fmt.Errorf("ble: service %s: %w", ServiceUUID, ErrServiceNotFound)
	}

	chars, err := service.Characteristics()
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w: %w", ErrCharacteristicNotFound, err)
	}

	write := findCharacteristic(chars, WriteCharUUID, opts.Match)
	notify := findCharacteristic(chars, NotifyCharUUID, opts.Match)
	switch {
	case write == nil:
		return nil, fmt.Errorf("ble: write characteristic %s: %w", WriteCharUUID, ErrCharacteristicNotFound)
	case notify == nil:
		return nil, fmt.Errorf("ble: notify characteristic %s: %w", NotifyCharUUID, ErrCharacteristicNotFound)
	}

	return &Session{
		conn:    conn,
		service: service,
		write:   write,
		notify:  notify,
		opts:    opts,
	}, nil
}

// findCharacteristic returns the first characteristic matching want.
func findCharacteristic(chars []Characteristic, want string, mode MatchMode) Characteristic {
	var found Characteristic
	for _, c := range chars {
		if !mode.Match(c.UUID(), want) {
			continue
		}
		if found != nil {
			slog.Debug("[BLE] ignoring additional matching characteristic", "uuid", c.UUID(), "want", want)
			continue
		}
		found = c
	}
	return found
}

// Write sends data to the write characteristic. Writes are acknowledged
// unless the session was resolved with WriteCommand.
func (s *Session) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var err error
	if s.opts.WriteCommand {
		err = s.write.WriteCommand(data)
	} else {
		err = s.write.Write(data)
	}
	if err != nil {
		return fmt.Errorf("ble: write: %w", err)
	}
	return nil
}

// Subscribe registers h for notifications on the notify characteristic.
func (s *Session) Subscribe(h FrameHandler) error {
	if err := s.notify.Subscribe(h.HandleFrame); err != nil {
		return fmt.Errorf("ble: subscribe %s: %w: %w", s.notify.UUID(), ErrSubscriptionFailed, err)
	}
	s.mu.Lock()
	s.subscribed = true
	s.mu.Unlock()
	return nil
}

// OnDisconnect registers cb to run if the peripheral drops the link.
func (s *Session) OnDisconnect(cb func()) {
	s.conn.OnDisconnect(cb)
}

// Close unsubscribes and disconnects. Only the first call does any work;
// later calls return nil.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.close() })
	return err
}

func (s *Session) close() error {
	s.mu.Lock()
	subscribed := s.subscribed
	s.subscribed = false
	s.mu.Unlock()

	if subscribed {
		if err := s.notify.Unsubscribe(); err != nil {
			// The link may already be gone; disconnect still has to run.
			slog.Debug("[BLE] unsubscribe", "error", err)
		}
	}
	if err := s.conn.Disconnect(); err != nil {
		return fmt.Errorf("ble: disconnect: %w", err)
	}
	slog.Info("[BLE] disconnected", "address", s.Peripheral.Address)
	return nil
}
