// list.go
package serialhelper

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial endpoint present on the system.
type PortInfo struct {
	// Path is the device path, e.g. /dev/ttyUSB0 or COM3.
	Path string `json:"path"`
	// IsUSB reports whether the port sits on a USB adapter; the fields
	// below are only filled when it does.
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// List enumerates the serial ports available on this machine.
func List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Path:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}
