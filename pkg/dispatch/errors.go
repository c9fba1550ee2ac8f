package dispatch

import (
	"fmt"
)

// PortOpenError means the device is missing, busy or not permitted.
type PortOpenError struct {
	Port string
	Err  error
}

func (e *PortOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Port, e.Err)
}

func (e *PortOpenError) Unwrap() error { return e.Err }

type WriteError struct {
	Port string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Port, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// PartialWriteError is a short write. A truncated command can put the device in an
// undefined state, so it is a failure even though some bytes went out.
type PartialWriteError struct {
	Port    string
	Written int
	Want    int
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("write %s: partial write, %d of %d bytes", e.Port, e.Written, e.Want)
}

// Unwrap lets errors.As(err, &*WriteError) match short writes too.
func (e *PartialWriteError) Unwrap() error {
	return &WriteError{Port: e.Port, Err: fmt.Errorf("short write")}
}

type EncodeError struct {
	Command string
	Offset  int
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("command %q: non-ASCII byte at offset %d", e.Command, e.Offset)
}
