package worker

import (
	"context"
	"time"
)

type Key uint16

const (
	VK_ESCAPE Key = 0x1b
	VK_END    Key = 0x23
	VK_HOME   Key = 0x24
	VK_INSERT Key = 0x2d
	VK_DELETE Key = 0x2e
)

// KeyState reports whether key is held down right now.
type KeyState func(key Key) (bool, error)

// UntilKey builds a Feature that loops back every poll interval until key
// is pressed.
func UntilKey(state KeyState, key Key, poll time.Duration) Feature {
	return func(ctx context.Context) Dispatch {
		pressed, err := state(key)
		if err != nil {
			return Failure(err.Error())
		} else if pressed {
			return Success
		}
		select {
		case <-ctx.Done():
		case <-time.After(poll):
		}
		return Loopback
	}
}
