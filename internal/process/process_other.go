//go:build !windows && !linux

package process

import (
	"fmt"
	"runtime"

	"github.com/wnxd/membase/host"
)

type Process struct {
	host.Process
}

func New() (*Process, error) {
	return nil, fmt.Errorf("%w: %s", host.ErrNotImplemented, runtime.GOOS)
}
