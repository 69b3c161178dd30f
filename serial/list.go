package serial

import (
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// List returns the serial ports present on the system.
func List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	result := make([]PortInfo, 0, len(details))
	for _, d := range details {
		result = append(result, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	return result, nil
}
