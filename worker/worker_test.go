package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoopback(t *testing.T) {
	calls := 0
	err := Run(context.Background(), func(ctx context.Context) Dispatch {
		calls++
		if calls < 3 {
			return Loopback
		}
		return Success
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunFailure(t *testing.T) {
	err := Run(context.Background(), func(ctx context.Context) Dispatch {
		return Failuref("pattern %s not found", "Pattern1")
	})
	assert.ErrorIs(t, err, ErrFeature)
	assert.Contains(t, err.Error(), "pattern Pattern1 not found")
}

func TestRunPanic(t *testing.T) {
	err := Run(context.Background(), func(ctx context.Context) Dispatch {
		panic("boom")
	})
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "boom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Run(ctx, func(ctx context.Context) Dispatch {
		calls++
		cancel()
		return Loopback
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestGo(t *testing.T) {
	done := Go(context.Background(), func(ctx context.Context) Dispatch {
		return Success
	})
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not finish")
	}
	_, ok := <-done
	assert.False(t, ok)
}

func TestUntilKey(t *testing.T) {
	polls := 0
	state := func(key Key) (bool, error) {
		assert.Equal(t, VK_END, key)
		polls++
		return polls == 4, nil
	}
	require.NoError(t, Run(context.Background(), UntilKey(state, VK_END, time.Millisecond)))
	assert.Equal(t, 4, polls)
}

func TestUntilKeyError(t *testing.T) {
	state := func(key Key) (bool, error) {
		return false, errors.New("no keyboard")
	}
	err := Run(context.Background(), UntilKey(state, VK_END, time.Millisecond))
	assert.ErrorIs(t, err, ErrFeature)
	assert.Contains(t, err.Error(), "no keyboard")
}

func TestDispatchString(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "loopback", Loopback.String())
	assert.Equal(t, "error: x", Failure("x").String())
}
