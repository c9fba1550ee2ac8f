package serialport

import (
	"context"
	"go.uber.org/atomic"
)

// Arbiter hands a single physical port back and forth between the capture loop and
// command dispatch. Most USB serial adapters refuse a second open handle, so whoever
// holds the Arbiter is the only one allowed to have the device open.
//
// A nil *Arbiter is valid and never blocks; it is used when capture and dispatch
// target different devices.
type Arbiter struct {
	token   chan struct{}
	waiters atomic.Int32
}

func NewArbiter() *Arbiter {
	return &Arbiter{token: make(chan struct{}, 1)}
}

func (a *Arbiter) Acquire(ctx context.Context) error {
	if a == nil {
		return nil
	}
	select {
	case a.token <- struct{}{}:
		return nil
	default:
	}

	a.waiters.Inc()
	defer a.waiters.Dec()
	select {
	case a.token <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release gives the port up. Releasing an Arbiter nobody holds is a no-op.
func (a *Arbiter) Release() {
	if a == nil {
		return
	}
	select {
	case <-a.token:
	default:
	}
}

// Contended reports whether someone is blocked in Acquire.
func (a *Arbiter) Contended() bool {
	if a == nil {
		return false
	}
	return a.waiters.Load() > 0
}
