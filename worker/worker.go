// Package worker drives a feature loop on a dedicated OS thread.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/apex/log"
)

var ErrFeature = errors.New("feature failed")

type Feature func(ctx context.Context) Dispatch

type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("feature panicked: %v", e.Value)
}

// Run invokes f until it returns Success or a failure, or ctx is done.
// A panic inside f ends the loop and is returned as a *PanicError.
func Run(ctx context.Context, f Feature) error {
	entry := log.WithField("worker", "feature")
	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			entry.WithError(err).Debug("feature loop cancelled")
			return err
		}
		d, err := invoke(ctx, f)
		if err != nil {
			entry.WithError(err).WithField("round", round).Error("feature loop aborted")
			return err
		}
		switch d.Kind {
		case KIND_SUCCESS:
			entry.WithField("round", round).Debug("feature loop finished")
			return nil
		case KIND_LOOPBACK:
			continue
		default:
			entry.WithField("round", round).Error(d.Message)
			return fmt.Errorf("%w: %s", ErrFeature, d.Message)
		}
	}
}

func invoke(ctx context.Context, f Feature) (d Dispatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return f(ctx), nil
}

// Go starts Run on a goroutine locked to its own OS thread. The channel
// receives the result of Run and is then closed.
func Go(ctx context.Context, f Feature) <-chan error {
	done := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(done)
		done <- Run(ctx, f)
	}()
	return done
}
