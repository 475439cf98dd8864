package ble

import "errors"

var (
	// ErrNoAdapter is returned when no usable BLE adapter can be enabled.
	ErrNoAdapter = errors.New("no bluetooth adapter found")

	// ErrNoDeviceFound is returned when a scan yields no NUS peripheral.
	ErrNoDeviceFound = errors.New("no devices advertising the Nordic UART Service found")

	ErrConnectionFailed = errors.New("connection failed")

	ErrServiceNotFound = errors.New("NUS service not found on the device")

	ErrCharacteristicNotFound = errors.New("required characteristics not found")

	ErrSubscriptionFailed = errors.New("failed to subscribe to notifications")
)
