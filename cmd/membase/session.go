package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/wnxd/membase/cmd/membase/imports"
	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/iface"
	"github.com/wnxd/membase/module"
	"github.com/wnxd/membase/signature"
	"github.com/wnxd/membase/worker"
)

const (
	targetModule    = "client.dll"
	targetInterface = "VClient018"
)

// session resolves its targets on the first round, then loops until the
// exit key is pressed and releases everything it acquired.
type session struct {
	proc   host.Process
	keys   worker.KeyState
	poll   time.Duration
	img    *module.Image
	handle *iface.Handle
	wait   worker.Feature
}

func newSession(proc host.Process, keys worker.KeyState) *session {
	return &session{proc: proc, keys: keys, poll: 50 * time.Millisecond}
}

func (s *session) Feature(ctx context.Context) worker.Dispatch {
	if s.wait == nil {
		if err := s.open(); err != nil {
			return worker.Failure(errors.Join(err, s.Close()).Error())
		}
		s.wait = worker.UntilKey(s.keys, worker.VK_END, s.poll)
		return worker.Loopback
	}
	d := s.wait(ctx)
	if d.Kind == worker.KIND_LOOPBACK {
		return d
	}
	if err := s.Close(); err != nil {
		return worker.Failure(err.Error())
	}
	return d
}

func (s *session) open() error {
	img, err := module.Resolve(s.proc, targetModule)
	if err != nil {
		return err
	}
	s.img = img
	call, err := signature.Scan(img, imports.CreateMoveCall)
	if err != nil {
		return fmt.Errorf("CreateMoveCall: %w", err)
	}
	s.handle, err = iface.Open(s.proc, targetModule, targetInterface)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"create_move_call": fmt.Sprintf("%#x", call),
		"local_player":     fmt.Sprintf("%#x", img.Offset(imports.LocalPlayer)),
		"entity_list":      fmt.Sprintf("%#x", img.Offset(imports.EntityList)),
		"client":           fmt.Sprintf("%#x", s.handle.Object.Address()),
		"slots":            s.handle.Table.Len(),
	}).Info(imports.Name + " attached")
	return nil
}

func (s *session) Close() error {
	var errs []error
	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			errs = append(errs, err)
		} else {
			s.handle = nil
		}
	}
	if s.img != nil {
		errs = append(errs, s.img.Close())
		s.img = nil
	}
	return errors.Join(errs...)
}
