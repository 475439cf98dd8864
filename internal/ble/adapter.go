// Package ble provides the Bluetooth Low Energy side of nusterm: the adapter
// abstraction, discovery of Nordic UART Service peripherals, and resolution of
// a connected peripheral into a Session with its write and notify
// characteristics.
package ble

import "context"

// Nordic UART Service UUIDs. The write characteristic is the peripheral's RX,
// the notify characteristic is its TX.
const (
	ServiceUUID    = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	WriteCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	NotifyCharUUID = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Peripheral is a device seen during a scan pass.
type Peripheral struct {
	Name     string   // advertised local name, may be empty
	Address  string   // unique per adapter
	RSSI     int      // signal strength at discovery time
	Services []string // advertised service UUIDs, as reported by the adapter
}

// DisplayName returns the advertised name or "Unknown".
func (p Peripheral) DisplayName() string {
	if p.Name == "" {
		return "Unknown"
	}
	return p.Name
}

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// UUID returns the characteristic UUID in string form.
	UUID() string
	// Write sends data as an acknowledged write request.
	Write(data []byte) error
	// WriteCommand sends data without waiting for an acknowledgement.
	WriteCommand(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
	// Unsubscribe disables notifications.
	Unsubscribe() error
}

// Service represents a GATT service on a connected peripheral.
type Service interface {
	UUID() string
	Characteristics() ([]Characteristic, error)
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// Services enumerates the peripheral's GATT services.
	Services() ([]Service, error)
	// Disconnect terminates the connection. Safe to call when already closed.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// ID identifies the adapter for display.
	ID() string
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports every peripheral seen until ctx is done, in the order
	// they were first seen.
	Scan(ctx context.Context) ([]Peripheral, error)
	// Connect establishes a connection to the given peripheral.
	Connect(ctx context.Context, p Peripheral) (Connection, error)
}
