package controller

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
)

type op string

const (
	opStart op = "start"
	opStop  op = "stop"
)

// Task is the pending result of one start or stop transition.
type Task struct {
	Op      string
	Mode    commands.Mode
	Command string

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	written int
	err     error
}

func newTask(o op, mode commands.Mode, command string) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		Op:      string(o),
		Mode:    mode,
		Command: command,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err is the dispatch result. It is only meaningful once Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) Written() int {
	select {
	case <-t.done:
		return t.written
	default:
		return 0
	}
}

// Wait blocks until the transition finishes or ctx ends. Giving up on the wait does
// not cancel the send.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the send if it has not reached the write yet. The port is still closed
// and the transition completes as a failure.
func (t *Task) Cancel() {
	t.cancel()
}
