// Package capture continuously reads whatever the device streams and appends it, line
// by line, to a Sink. It runs independently of command dispatch.
package capture

import (
	"context"
	"dancavallaro.com/devicectl/pkg/events"
	"dancavallaro.com/devicectl/pkg/serialport"
	"time"
)

const (
	DefaultPollInterval = 10 * time.Millisecond
	DefaultReadTimeout  = 5 * time.Millisecond
)

// Sink consumes decoded lines. Append must make the line durable before returning.
type Sink interface {
	Append(line string) error
}

type Config struct {
	Port         string
	Baud         int
	ReadTimeout  time.Duration
	PollInterval time.Duration
}

func DefaultConfig(port string) Config {
	return Config{
		Port:         port,
		Baud:         serialport.DefaultBaud,
		ReadTimeout:  DefaultReadTimeout,
		PollInterval: DefaultPollInterval,
	}
}

type Engine struct {
	cfg     Config
	opener  serialport.Opener
	arbiter *serialport.Arbiter
	events  events.Emitter
}

// NewEngine builds an Engine. Pass the dispatcher's arbiter when both talk to the same
// device, nil otherwise.
func NewEngine(cfg Config, opener serialport.Opener, arbiter *serialport.Arbiter, emitter events.Emitter) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Engine{cfg: cfg, opener: opener, arbiter: arbiter, events: emitter}
}

// Start opens the port and begins capturing into sink. An open failure is returned
// directly; later failures end the session and are reported as events. The session
// also ends when ctx is done.
func (e *Engine) Start(ctx context.Context, sink Sink) (*Session, error) {
	if err := e.arbiter.Acquire(ctx); err != nil {
		return nil, err
	}
	port, err := e.open()
	if err != nil {
		e.arbiter.Release()
		return nil, err
	}

	s := &Session{
		engine: e,
		sink:   sink,
		port:   port,
		held:   e.arbiter != nil,
		ctx:    ctx,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.events.Emit(events.Info, "capture started on %s", e.cfg.Port)
	go s.loop()
	return s, nil
}

func (e *Engine) open() (serialport.Port, error) {
	port, err := e.opener.Open(e.cfg.Port, e.cfg.Baud, e.cfg.ReadTimeout)
	if err != nil {
		return nil, &OpenError{Port: e.cfg.Port, Err: err}
	}
	return port, nil
}
