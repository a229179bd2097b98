package lineio

import (
	"fmt"

	"go.bug.st/serial"
)

const (
	// DefaultDevice is the usual path of a USB-serial adapter on Linux.
	DefaultDevice = "/dev/ttyUSB0"

	// DefaultBaudRate matches the firmware's console speed.
	DefaultBaudRate = 115200
)

// OpenSerial opens the given serial device at the given speed (8N1) and
// returns a line source over it. Closing the source releases the port.
func OpenSerial(device string, baudRate int) (*StreamSource, error) {
	if device == "" {
		device = DefaultDevice
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	return newStreamSource(device, port, port), nil
}
