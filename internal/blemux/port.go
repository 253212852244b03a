package blemux

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// Porter is the minimal interface the mux needs from a transport port.
// The abstraction lets tests run without dongle hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortOptions describes the serial connection parameters for the dongle
// bridge. Zero values take the dongle defaults on Normalize.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies dongle defaults.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	switch parity {
	case "", "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the serial.Mode required by
// go.bug.st/serial when opening a port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.StopBits(opts.StopBits),
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}

// PortFactory creates transport ports; injected so tests can substitute
// mock ports for the dongle.
type PortFactory interface {
	Open(path string, opts PortOptions) (Porter, error)
}

// SerialPortFactory opens real serial ports via go.bug.st/serial.
type SerialPortFactory struct{}

// Open opens the dongle serial port at path.
func (SerialPortFactory) Open(path string, opts PortOptions) (Porter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	return serial.Open(path, mode)
}

// NewSerialMux opens the dongle port at path and wraps it in a Mux.
func NewSerialMux(path string, opts PortOptions) (*Mux[Porter], error) {
	port, err := SerialPortFactory{}.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewMux[Porter](port), nil
}
