// Package serialport is the boundary between devicectl and the serial hardware.
package serialport

import (
	"github.com/albenik/go-serial/v2"
	"time"
)

// DefaultBaud is the rate every Xirgo unit ships with.
const DefaultBaud = 115200

const readChunk = 4096

// Port is an open serial handle.
type Port interface {
	Write(b []byte) (int, error)
	// ReadAvailable returns whatever is currently buffered, possibly nothing. It never
	// blocks longer than the read timeout the port was opened with.
	ReadAvailable() ([]byte, error)
	Close() error
}

type Opener interface {
	Open(name string, baud int, timeout time.Duration) (Port, error)
}

// AlbenikOpener opens real ports at 8N1 with the given read/write timeout.
type AlbenikOpener struct{}

func (AlbenikOpener) Open(name string, baud int, timeout time.Duration) (Port, error) {
	ms := int(timeout / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	port, err := serial.Open(
		name,
		serial.WithBaudrate(baud),
		serial.WithReadTimeout(ms),
		serial.WithWriteTimeout(ms),
	)
	if err != nil {
		return nil, err
	}
	return &albenikPort{port: port, buff: make([]byte, readChunk)}, nil
}

type albenikPort struct {
	port *serial.Port
	buff []byte
}

func (p *albenikPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *albenikPort) ReadAvailable() ([]byte, error) {
	var out []byte
	for {
		n, err := p.port.Read(p.buff)
		if err != nil {
			return out, err
		}
		out = append(out, p.buff[:n]...)
		if n < len(p.buff) {
			return out, nil
		}
	}
}

func (p *albenikPort) Close() error {
	return p.port.Close()
}
