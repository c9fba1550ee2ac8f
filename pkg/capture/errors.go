package capture

import (
	"fmt"
)

type OpenError struct {
	Port string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Port, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError ends a capture session, typically because the device was unplugged.
type ReadError struct {
	Port string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Port, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// DecodeError is never fatal: the chunk is dropped and capture continues.
type DecodeError struct {
	Port  string
	Bytes int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dropped undecodable chunk of %d bytes from %s", e.Bytes, e.Port)
}
