// Package host describes the process this engine is loaded into.
//
// Memory owned by the host is never modelled as a Go value. It is reached
// through a Process and the Pointer accessor, which bound every read and
// write to an explicit address and length.
package host

import "io"

type ModuleHandle uint64

type ModuleInfo struct {
	Base, Size uint64
}

type Process interface {
	io.Closer
	Arch() Arch
	PointerSize() uint64
	PageSize() uint64
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
	// MemProtect changes the protection of the pages covering
	// [addr, addr+size) and returns the protection they had before.
	MemProtect(addr, size uint64, prot MemProt) (MemProt, error)
	MemAlloc(size uint64, prot MemProt) (uint64, error)
	MemFree(addr uint64) error
	// ModuleOpen looks up an already loaded module by name, ignoring case,
	// and acquires a loader reference to it.
	ModuleOpen(name string) (ModuleHandle, error)
	ModuleInfo(h ModuleHandle) (ModuleInfo, error)
	ModuleClose(h ModuleHandle) error
	ProcAddress(h ModuleHandle, name string) (uint64, error)
	// Call invokes the foreign function at addr with the platform's
	// standard calling convention.
	Call(addr uint64, args ...uint64) (uint64, error)
}
