// transport.go
package serialhelper

import (
	"io"

	"go.bug.st/serial"
)

// Port is the transport handle under a connection: a byte stream that can
// additionally report when its output buffer has drained. go.bug.st/serial
// ports satisfy it directly.
type Port interface {
	io.ReadWriteCloser
	Drain() error
}

// OpenFunc opens the transport endpoint at the given baud rate. The default
// opens a real serial port in 8N1 mode; tests and alternative transports
// substitute their own through Config.Open.
type OpenFunc func(path string, baud int) (Port, error)

// openSerial is the default OpenFunc.
func openSerial(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
