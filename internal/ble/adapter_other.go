//go:build !linux

package ble

import (
	"log/slog"

	"tinygo.org/x/bluetooth"
)

// hostAdapter returns the default adapter. Only BlueZ exposes more than one
// controller, so id is ignored here.
func hostAdapter(id string) *bluetooth.Adapter {
	if id != "" {
		slog.Warn("[BLE] adapter selection is only supported on linux, using default", "adapter", id)
	}
	return bluetooth.DefaultAdapter
}
