package serialport

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestNilArbiterNeverBlocks(t *testing.T) {
	var a *Arbiter
	require.NoError(t, a.Acquire(context.Background()))
	require.NoError(t, a.Acquire(context.Background()))
	a.Release()
	assert.False(t, a.Contended())
}

func TestArbiterHandsOffToWaiter(t *testing.T) {
	a := NewArbiter()
	require.NoError(t, a.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		if err := a.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	assert.Eventually(t, a.Contended, time.Second, time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("waiter acquired while the port was still held")
	default:
	}

	a.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the port")
	}
	assert.Eventually(t, func() bool { return !a.Contended() }, time.Second, time.Millisecond)
}

func TestArbiterAcquireHonoursContext(t *testing.T) {
	a := NewArbiter()
	require.NoError(t, a.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Acquire(ctx), context.DeadlineExceeded)
	assert.False(t, a.Contended())
}

func TestArbiterReleaseWithoutHolderIsNoop(t *testing.T) {
	a := NewArbiter()
	a.Release()
	require.NoError(t, a.Acquire(context.Background()))
	a.Release()
	require.NoError(t, a.Acquire(context.Background()))
}
