// Package self opens the process the caller is running in.
package self

import (
	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/internal/process"
)

func Open() (host.Process, error) {
	p, err := process.New()
	if err != nil {
		return nil, err
	}
	return p, nil
}
