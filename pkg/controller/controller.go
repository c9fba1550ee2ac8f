// Package controller is the mode state machine: which command pair is selected and
// whether the device is currently running it.
package controller

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
	"dancavallaro.com/devicectl/pkg/events"
	"errors"
	"fmt"
	"sync"
)

var ErrClosed = errors.New("controller closed")

type Sender interface {
	Send(ctx context.Context, command string) (int, error)
}

type State struct {
	Mode    commands.Mode
	Running bool
}

func (s State) String() string {
	if s.Running {
		return fmt.Sprintf("Running(%s)", s.Mode.ID)
	}
	return fmt.Sprintf("Idle(%s)", s.Mode.ID)
}

// BusyError rejects a transition that is illegal in the current state.
type BusyError struct {
	Op      string
	State   State
	Pending bool
}

func (e *BusyError) Error() string {
	switch {
	case e.Pending:
		return fmt.Sprintf("%s: busy, a command is still being sent", e.Op)
	case e.State.Running:
		return fmt.Sprintf("%s: busy, %s is running, stop it first", e.Op, e.State.Mode.ID)
	default:
		return fmt.Sprintf("%s: %s is not running", e.Op, e.State.Mode.ID)
	}
}

type Options struct {
	// StrictStop keeps the controller Running when the stop command could not be sent.
	// Off by default: the original panel always showed a stop as done.
	StrictStop bool
}

// Controller serializes transitions: at most one command dispatch is in flight, and
// it runs on the controller's own worker goroutine so callers never block on I/O.
//
// Events are emitted while the controller lock is held, which keeps them in state
// order. Event subscribers must not call back into the Controller synchronously.
type Controller struct {
	table      *commands.Table
	sender     Sender
	events     events.Emitter
	strictStop bool

	mu      sync.Mutex
	state   State
	pending *Task
	closed  bool

	tasks chan *Task
	done  chan struct{}
}

func New(table *commands.Table, defaultMode string, sender Sender, emitter events.Emitter, opts Options) (*Controller, error) {
	mode, err := table.Lookup(defaultMode)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		table:      table,
		sender:     sender,
		events:     emitter,
		strictStop: opts.StrictStop,
		state:      State{Mode: mode},
		tasks:      make(chan *Task, 1),
		done:       make(chan struct{}),
	}
	go c.run()
	return c, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a transition is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

func (c *Controller) Modes() []commands.Mode {
	return c.table.Modes()
}

func (c *Controller) SetMode(id string) error {
	mode, err := c.table.Lookup(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.pending != nil || c.state.Running {
		return &BusyError{Op: "set mode", State: c.state, Pending: c.pending != nil}
	}
	c.state.Mode = mode
	c.events.Emit(events.Info, "mode changed")
	return nil
}

func (c *Controller) Start() (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submit(opStart)
}

func (c *Controller) Stop() (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submit(opStop)
}

// Toggle starts an idle controller and stops a running one.
func (c *Controller) Toggle() (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running {
		return c.submit(opStop)
	}
	return c.submit(opStart)
}

// Close rejects every future transition and waits for the one in flight, if any, so
// its port is closed cleanly.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.tasks)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submit must be called with c.mu held.
func (c *Controller) submit(o op) (*Task, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.pending != nil {
		return nil, &BusyError{Op: string(o), State: c.state, Pending: true}
	}

	mode := c.state.Mode
	var command string
	switch o {
	case opStart:
		if c.state.Running {
			return nil, &BusyError{Op: string(o), State: c.state}
		}
		command = mode.Start
		c.events.Emit(events.Info, "starting %s", mode.ID)
	case opStop:
		if !c.state.Running {
			return nil, &BusyError{Op: string(o), State: c.state}
		}
		command = mode.Stop
		c.events.Emit(events.Info, "stopping %s", mode.ID)
	}

	task := newTask(o, mode, command)
	c.pending = task
	c.tasks <- task
	return task, nil
}

func (c *Controller) run() {
	defer close(c.done)
	for task := range c.tasks {
		c.execute(task)
	}
}

func (c *Controller) execute(task *Task) {
	n, err := c.sender.Send(task.ctx, task.Command)

	c.mu.Lock()
	task.written, task.err = n, err
	if err == nil {
		c.state.Running = task.Op == string(opStart)
		c.events.Emit(events.Info, "data sent: %s", commands.Printable(task.Command))
	} else {
		c.events.Emit(events.Error, "serial error: %v", err)
		switch {
		case task.Op == string(opStart):
			c.state.Running = false
		case c.strictStop:
			c.events.Emit(events.Warn, "%s still running: stop not confirmed", task.Mode.ID)
		default:
			c.state.Running = false
		}
	}
	c.pending = nil
	c.mu.Unlock()

	task.cancel()
	close(task.done)
}
