// Package module resolves images already loaded into the host process.
//
// An Image holds a loader reference for as long as it is open, so the
// addresses it hands out stay valid until Close.
package module

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"

	"github.com/wnxd/membase/host"
)

type Image struct {
	proc   host.Process
	name   string
	handle host.ModuleHandle
	base   uint64
	end    uint64
	mu     sync.Mutex
	closed bool
}

// Resolve looks up an already loaded module by name, ignoring case, and
// takes a reference to it. A module whose metadata cannot be read is
// released again before Resolve reports it missing.
func Resolve(proc host.Process, name string) (*Image, error) {
	h, err := proc.ModuleOpen(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModuleNotFound, name, err)
	}
	info, err := proc.ModuleInfo(h)
	if err == nil && info.Size == 0 {
		err = fmt.Errorf("%w: empty image", host.ErrModuleInvalid)
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%w: %s: %w", ErrModuleNotFound, name, err), proc.ModuleClose(h))
	}
	img := &Image{
		proc:   proc,
		name:   name,
		handle: h,
		base:   info.Base,
		end:    info.Base + info.Size - 1,
	}
	log.WithFields(log.Fields{
		"module": name,
		"base":   fmt.Sprintf("%#x", img.base),
		"end":    fmt.Sprintf("%#x", img.end),
	}).Debug("module resolved")
	return img, nil
}

func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if img.closed {
		return nil
	}
	img.closed = true
	return img.proc.ModuleClose(img.handle)
}

func (img *Image) Process() host.Process {
	return img.proc
}

func (img *Image) Name() string {
	return img.name
}

func (img *Image) Handle() host.ModuleHandle {
	return img.handle
}

func (img *Image) Base() uint64 {
	return img.base
}

// End is the address of the last byte of the image.
func (img *Image) End() uint64 {
	return img.end
}

func (img *Image) Size() uint64 {
	return img.end - img.base + 1
}

func (img *Image) Region() (uint64, uint64) {
	return img.base, img.end
}

func (img *Image) Contains(addr uint64) bool {
	return addr >= img.base && addr <= img.end
}

// Offset returns base+i. The result is not checked against the extent.
func (img *Image) Offset(i uint64) uint64 {
	return img.base + i
}

func (img *Image) Pointer(i uint64) host.Pointer {
	return host.ToPointer(img.proc, img.Offset(i))
}

// ProcAddress looks up an exported symbol of the image.
func (img *Image) ProcAddress(name string) (uint64, error) {
	img.mu.Lock()
	closed := img.closed
	img.mu.Unlock()
	if closed {
		return 0, ErrModuleClosed
	}
	return img.proc.ProcAddress(img.handle, name)
}
