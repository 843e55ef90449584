// Package iface obtains interface objects from a module's CreateInterface
// factory and ties them to a patchable virtual table.
package iface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/module"
	"github.com/wnxd/membase/vmt"
)

const FactoryExport = "CreateInterface"

// Capture calls the factory export of img as CreateInterface(name, NULL) and
// returns the object it hands back.
func Capture(img *module.Image, name string) (host.Pointer, error) {
	fn, err := img.ProcAddress(FactoryExport)
	if err != nil {
		return host.Pointer{}, fmt.Errorf("%w: %s: %w", ErrFactoryNotFound, img.Name(), err)
	}
	proc := img.Process()
	arg, release, err := host.Import(proc, name)
	if err != nil {
		return host.Pointer{}, err
	}
	ret, err := proc.Call(fn, arg, 0)
	if rerr := release(); rerr != nil {
		err = errors.Join(err, rerr)
	}
	if err != nil {
		return host.Pointer{}, fmt.Errorf("call %s!%s: %w", img.Name(), FactoryExport, err)
	} else if ret == 0 {
		return host.Pointer{}, fmt.Errorf("%w: %s in %s", ErrInterfaceNotFound, name, img.Name())
	}
	log.WithFields(log.Fields{
		"module":    img.Name(),
		"interface": name,
		"object":    fmt.Sprintf("%#x", ret),
	}).Debug("interface captured")
	return host.ToPointer(proc, ret), nil
}

// Handle owns a module reference, an interface object from that module and
// the virtual table of the object.
type Handle struct {
	Module *module.Image
	Object host.Pointer
	Table  *vmt.Table
	Name   string

	mu     sync.Mutex
	closed bool
}

// FromModule captures name from img. On success the handle owns img.
func FromModule(img *module.Image, name string) (*Handle, error) {
	obj, err := Capture(img, name)
	if err != nil {
		return nil, err
	}
	table, err := vmt.New(obj)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Handle{Module: img, Object: obj, Table: table, Name: name}, nil
}

// Open resolves moduleName and captures interfaceName from it. The module
// reference is released again if any step fails.
func Open(proc host.Process, moduleName, interfaceName string) (*Handle, error) {
	img, err := module.Resolve(proc, moduleName)
	if err != nil {
		return nil, err
	}
	h, err := FromModule(img, interfaceName)
	if err != nil {
		return nil, errors.Join(err, img.Close())
	}
	return h, nil
}

// Close restores every hooked slot and then releases the module. If a slot
// cannot be restored the module reference is kept and Close may be retried.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if err := h.Table.Close(); err != nil {
		return err
	}
	if err := h.Module.Close(); err != nil {
		return err
	}
	h.closed = true
	return nil
}
