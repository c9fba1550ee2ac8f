package controller

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
	"dancavallaro.com/devicectl/pkg/dispatch"
	"dancavallaro.com/devicectl/pkg/events"
	"dancavallaro.com/devicectl/pkg/serialport/serialtest"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// fakeSender fails every command listed in failures and can hold sends until released.
type fakeSender struct {
	mu       sync.Mutex
	sent     []string
	failures map[string]error
	gate     chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, command string) (int, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, command)
	if err := f.failures[command]; err != nil {
		return 0, err
	}
	return len(command), nil
}

func (f *fakeSender) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func testTable(t *testing.T) *commands.Table {
	table, err := commands.NewTable(
		commands.Mode{ID: "A", Start: "!xs\r\n", Stop: "!xe\r\n"},
		commands.Mode{ID: "B", Start: "!ys\r\n", Stop: "!ye\r\n"},
	)
	require.NoError(t, err)
	return table
}

func newController(t *testing.T, sender Sender, opts Options) (*Controller, *events.Recorder) {
	rec := &events.Recorder{}
	c, err := New(testTable(t), "A", sender, rec, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, rec
}

func wait(t *testing.T, task *Task) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-task.Done():
	case <-ctx.Done():
		t.Fatal("transition never finished")
	}
	return task.Wait(ctx)
}

func TestStartScenarioWithSimulatedPort(t *testing.T) {
	opener := serialtest.NewOpener()
	cfg := dispatch.DefaultConfig("/dev/ttyTEST")
	cfg.SettleDelay, cfg.DrainDelay = 0, 0
	c, rec := newController(t, dispatch.New(cfg, opener, nil), Options{})

	require.NoError(t, c.SetMode("A"))
	task, err := c.Start()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Equal(t, []string{"mode changed", "starting A", "data sent: !xs"}, rec.Messages())
	assert.Equal(t, "Running(A)", c.State().String())
	assert.Equal(t, 5, task.Written())
	assert.Equal(t, []string{"!xs\r\n"}, opener.Port.Writes())
	assert.Equal(t, 1, opener.Port.Closes())
}

func TestStartWithPortOpenErrorStaysIdle(t *testing.T) {
	opener := serialtest.NewOpener()
	opener.FailOpens(errors.New("device busy"))
	cfg := dispatch.DefaultConfig("/dev/ttyTEST")
	cfg.SettleDelay, cfg.DrainDelay = 0, 0
	c, rec := newController(t, dispatch.New(cfg, opener, nil), Options{})

	task, err := c.Start()
	require.NoError(t, err)
	err = wait(t, task)

	var openErr *dispatch.PortOpenError
	assert.True(t, errors.As(err, &openErr))
	require.Len(t, rec.BySeverity(events.Error), 1)
	assert.Contains(t, rec.BySeverity(events.Error)[0].Message, "serial error")
	assert.False(t, c.State().Running)
	assert.Equal(t, "Idle(A)", c.State().String())
}

func TestRunningIffStartSucceeded(t *testing.T) {
	for _, fail := range []bool{false, true} {
		sender := &fakeSender{failures: map[string]error{}}
		if fail {
			sender.failures["!xs\r\n"] = errors.New("boom")
		}
		c, _ := newController(t, sender, Options{})

		task, err := c.Start()
		require.NoError(t, err)
		sendErr := wait(t, task)
		assert.Equal(t, sendErr == nil, c.State().Running, "fail=%v", fail)
	}
}

func TestStopAlwaysClearsRunning(t *testing.T) {
	for _, fail := range []bool{false, true} {
		sender := &fakeSender{failures: map[string]error{}}
		if fail {
			sender.failures["!xe\r\n"] = errors.New("boom")
		}
		c, rec := newController(t, sender, Options{})

		task, err := c.Start()
		require.NoError(t, err)
		require.NoError(t, wait(t, task))

		task, err = c.Stop()
		require.NoError(t, err)
		_ = wait(t, task)
		assert.False(t, c.State().Running, "fail=%v", fail)
		assert.Equal(t, fail, len(rec.BySeverity(events.Error)) == 1)
	}
}

func TestStrictStopKeepsRunningOnFailure(t *testing.T) {
	sender := &fakeSender{failures: map[string]error{"!xe\r\n": errors.New("boom")}}
	c, rec := newController(t, sender, Options{StrictStop: true})

	task, err := c.Start()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	task, err = c.Stop()
	require.NoError(t, err)
	assert.Error(t, wait(t, task))
	assert.True(t, c.State().Running)
	require.Len(t, rec.BySeverity(events.Warn), 1)
	assert.Equal(t, "A still running: stop not confirmed", rec.BySeverity(events.Warn)[0].Message)

	delete(sender.failures, "!xe\r\n")
	task, err = c.Stop()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	assert.False(t, c.State().Running)
}

func TestSetModeWhileRunningIsBusy(t *testing.T) {
	c, rec := newController(t, &fakeSender{}, Options{})

	task, err := c.Start()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	before := len(rec.Messages())
	err = c.SetMode("B")
	var busy *BusyError
	require.True(t, errors.As(err, &busy))
	assert.Equal(t, "A", c.State().Mode.ID)
	assert.Len(t, rec.Messages(), before)
}

func TestSetModeUnknown(t *testing.T) {
	c, _ := newController(t, &fakeSender{}, Options{})
	var notFound *commands.NotFoundError
	assert.True(t, errors.As(c.SetMode("Z"), &notFound))
	assert.Equal(t, "A", c.State().Mode.ID)
}

func TestSetModeSwitchesCommandPair(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newController(t, sender, Options{})

	require.NoError(t, c.SetMode("B"))
	task, err := c.Toggle()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))
	task, err = c.Toggle()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	assert.Equal(t, []string{"!ys\r\n", "!ye\r\n"}, sender.Sent())
	assert.Equal(t, "Idle(B)", c.State().String())
}

func TestIllegalTransitionsAreRejectedSynchronously(t *testing.T) {
	c, _ := newController(t, &fakeSender{}, Options{})

	_, err := c.Stop()
	var busy *BusyError
	require.True(t, errors.As(err, &busy))
	assert.ErrorContains(t, err, "not running")

	task, err := c.Start()
	require.NoError(t, err)
	require.NoError(t, wait(t, task))

	_, err = c.Start()
	require.True(t, errors.As(err, &busy))
	assert.False(t, busy.Pending)
}

func TestOnlyOneTransitionInFlight(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{})}
	c, _ := newController(t, sender, Options{})

	task, err := c.Start()
	require.NoError(t, err)
	assert.True(t, c.Busy())

	var busy *BusyError
	_, err = c.Toggle()
	require.True(t, errors.As(err, &busy))
	assert.True(t, busy.Pending)
	require.True(t, errors.As(c.SetMode("B"), &busy))

	close(sender.gate)
	require.NoError(t, wait(t, task))
	assert.False(t, c.Busy())
	assert.Equal(t, []string{"!xs\r\n"}, sender.Sent())
}

func TestStartReturnsBeforeSendCompletes(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{})}
	c, _ := newController(t, sender, Options{})

	task, err := c.Start()
	require.NoError(t, err)
	select {
	case <-task.Done():
		t.Fatal("start blocked on the send")
	default:
	}
	assert.False(t, c.State().Running)
	assert.NoError(t, task.Err())

	close(sender.gate)
	require.NoError(t, wait(t, task))
	assert.True(t, c.State().Running)
}

func TestCloseWaitsForInFlightSend(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{})}
	rec := &events.Recorder{}
	c, err := New(testTable(t), "A", sender, rec, Options{})
	require.NoError(t, err)

	task, err := c.Start()
	require.NoError(t, err)

	closed := make(chan error, 1)
	go func() { closed <- c.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("close returned with a send in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(sender.gate)
	require.NoError(t, <-closed)
	require.NoError(t, task.Err())
	assert.True(t, c.State().Running)

	_, err = c.Toggle()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.SetMode("B"), ErrClosed)
}

func TestTaskCancelAbortsSend(t *testing.T) {
	sender := &fakeSender{gate: make(chan struct{})}
	c, rec := newController(t, sender, Options{})

	task, err := c.Start()
	require.NoError(t, err)
	task.Cancel()

	assert.ErrorIs(t, wait(t, task), context.Canceled)
	assert.False(t, c.State().Running)
	assert.Len(t, rec.BySeverity(events.Error), 1)
}

func TestNewRejectsUnknownDefaultMode(t *testing.T) {
	_, err := New(testTable(t), "nope", &fakeSender{}, &events.Recorder{}, Options{})
	var notFound *commands.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}
