//go:build !windows

package worker

import (
	"fmt"
	"runtime"

	"github.com/wnxd/membase/host"
)

func AsyncKeyState(key Key) (bool, error) {
	return false, fmt.Errorf("%w: key state on %s", host.ErrNotImplemented, runtime.GOOS)
}
