// Package dispatch sends one command per freshly opened port:
// open, settle, write, drain, close.
package dispatch

import (
	"context"
	"dancavallaro.com/devicectl/pkg/serialport"
	"go.uber.org/multierr"
	"time"
)

const (
	DefaultSettleDelay = 2 * time.Second
	DefaultDrainDelay  = 100 * time.Millisecond
	DefaultTimeout     = 1 * time.Second
)

type Config struct {
	Port    string
	Baud    int
	Timeout time.Duration
	// SettleDelay lets the device UART recover from the DTR/RTS toggle implied by open.
	SettleDelay time.Duration
	// DrainDelay lets the hardware finish shifting bytes out before close.
	DrainDelay time.Duration
}

func DefaultConfig(port string) Config {
	return Config{
		Port:        port,
		Baud:        serialport.DefaultBaud,
		Timeout:     DefaultTimeout,
		SettleDelay: DefaultSettleDelay,
		DrainDelay:  DefaultDrainDelay,
	}
}

type Dispatcher struct {
	cfg     Config
	opener  serialport.Opener
	arbiter *serialport.Arbiter
}

// New builds a Dispatcher. arbiter may be nil when nothing else uses the device.
func New(cfg Config, opener serialport.Opener, arbiter *serialport.Arbiter) *Dispatcher {
	return &Dispatcher{cfg: cfg, opener: opener, arbiter: arbiter}
}

func (d *Dispatcher) Port() string {
	return d.cfg.Port
}

// Send transmits command in a single write on its own port handle and returns the
// number of bytes written. The handle is closed exactly once on every path.
func (d *Dispatcher) Send(ctx context.Context, command string) (written int, err error) {
	data, err := encodeASCII(command)
	if err != nil {
		return 0, err
	}

	if err := d.arbiter.Acquire(ctx); err != nil {
		return 0, err
	}
	defer d.arbiter.Release()

	port, err := d.opener.Open(d.cfg.Port, d.cfg.Baud, d.cfg.Timeout)
	if err != nil {
		return 0, &PortOpenError{Port: d.cfg.Port, Err: err}
	}
	defer func() {
		err = multierr.Append(err, port.Close())
	}()

	if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
		return 0, err
	}

	n, werr := port.Write(data)
	switch {
	case werr != nil:
		return n, &WriteError{Port: d.cfg.Port, Err: werr}
	case n < len(data):
		return n, &PartialWriteError{Port: d.cfg.Port, Written: n, Want: len(data)}
	}

	if err := sleep(ctx, d.cfg.DrainDelay); err != nil {
		return n, err
	}
	return n, nil
}

func encodeASCII(command string) ([]byte, error) {
	for i := 0; i < len(command); i++ {
		if command[i] > 0x7f {
			return nil, &EncodeError{Command: command, Offset: i}
		}
	}
	return []byte(command), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
