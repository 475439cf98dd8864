//go:build linux

package ble

import "tinygo.org/x/bluetooth"

// hostAdapter returns the BlueZ adapter with the given id ("hci0", "hci1"),
// or the default adapter when id is empty.
func hostAdapter(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
