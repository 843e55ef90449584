// Package process reaches the memory of the process the engine runs in.
package process

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/wnxd/membase/host"
)

type allocator struct {
	mu     sync.Mutex
	blocks map[uint64]uint64
}

func (a *allocator) ctor() {
	a.blocks = make(map[uint64]uint64)
}

func (a *allocator) store(addr, size uint64) {
	a.mu.Lock()
	a.blocks[addr] = size
	a.mu.Unlock()
}

func (a *allocator) take(addr uint64) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	size, ok := a.blocks[addr]
	if !ok {
		return 0, fmt.Errorf("%w: %#x was not allocated here", host.ErrAddressInvalid, addr)
	}
	delete(a.blocks, addr)
	return size, nil
}

func (a *allocator) each(fn func(addr, size uint64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for addr, size := range a.blocks {
		fn(addr, size)
	}
	clear(a.blocks)
}

//go:nocheckptr
func view(addr, size uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), int(size))
}

func span(addr, size uint64) (uint64, uint64, error) {
	if addr == 0 {
		return 0, 0, fmt.Errorf("%w: null", host.ErrAddressInvalid)
	} else if addr+size < addr {
		return 0, 0, fmt.Errorf("%w: %#x+%#x wraps", host.ErrAddressInvalid, addr, size)
	}
	return addr, addr + size, nil
}
