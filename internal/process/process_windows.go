//go:build windows

package process

import (
	"fmt"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/wnxd/membase/host"
)

type Process struct {
	allocator
	self windows.Handle
	page uint64
}

func New() (*Process, error) {
	p := &Process{self: windows.CurrentProcess(), page: uint64(os.Getpagesize())}
	p.allocator.ctor()
	return p, nil
}

func (p *Process) Close() error {
	var last error
	p.allocator.each(func(addr, _ uint64) {
		if err := windows.VirtualFree(uintptr(addr), 0, windows.MEM_RELEASE); err != nil {
			last = err
		}
	})
	return last
}

func (p *Process) Arch() host.Arch {
	return host.NativeArch()
}

func (p *Process) PointerSize() uint64 {
	return uint64(unsafe.Sizeof(uintptr(0)))
}

func (p *Process) PageSize() uint64 {
	return p.page
}

func (p *Process) MemRead(addr, size uint64) ([]byte, error) {
	if err := p.check(addr, size, host.MEM_PROT_READ); err != nil {
		return nil, err
	}
	data := make([]byte, size)
	copy(data, view(addr, size))
	return data, nil
}

func (p *Process) MemWrite(addr uint64, data []byte) error {
	if err := p.check(addr, uint64(len(data)), host.MEM_PROT_WRITE); err != nil {
		return err
	}
	copy(view(addr, uint64(len(data))), data)
	return nil
}

func (p *Process) MemProtect(addr, size uint64, prot host.MemProt) (host.MemProt, error) {
	var old uint32
	err := windows.VirtualProtect(uintptr(addr), uintptr(size), toPageProt(prot), &old)
	if err != nil {
		return 0, err
	}
	return fromPageProt(old), nil
}

func (p *Process) MemAlloc(size uint64, prot host.MemProt) (uint64, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, toPageProt(prot))
	if err != nil {
		return 0, err
	}
	p.allocator.store(uint64(addr), size)
	return uint64(addr), nil
}

func (p *Process) MemFree(addr uint64) error {
	if _, err := p.allocator.take(addr); err != nil {
		return err
	}
	return windows.VirtualFree(uintptr(addr), 0, windows.MEM_RELEASE)
}

func (p *Process) ModuleOpen(name string) (host.ModuleHandle, error) {
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", host.ErrArgumentInvalid, err)
	}
	var h windows.Handle
	if err = windows.GetModuleHandleEx(0, ptr, &h); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", host.ErrModuleInvalid, name, err)
	}
	return host.ModuleHandle(h), nil
}

func (p *Process) ModuleInfo(h host.ModuleHandle) (host.ModuleInfo, error) {
	var info windows.ModuleInfo
	err := windows.GetModuleInformation(p.self, windows.Handle(h), &info, uint32(unsafe.Sizeof(info)))
	if err != nil {
		return host.ModuleInfo{}, fmt.Errorf("%w: %w", host.ErrModuleInvalid, err)
	}
	return host.ModuleInfo{Base: uint64(info.BaseOfDll), Size: uint64(info.SizeOfImage)}, nil
}

func (p *Process) ModuleClose(h host.ModuleHandle) error {
	return windows.FreeLibrary(windows.Handle(h))
}

func (p *Process) ProcAddress(h host.ModuleHandle, name string) (uint64, error) {
	addr, err := windows.GetProcAddress(windows.Handle(h), name)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", host.ErrSymbolNotFound, name, err)
	}
	return uint64(addr), nil
}

func (p *Process) Call(addr uint64, args ...uint64) (uint64, error) {
	if addr == 0 {
		return 0, host.ErrAddressInvalid
	}
	raw := make([]uintptr, len(args))
	for i, arg := range args {
		raw[i] = uintptr(arg)
	}
	r1, _, _ := syscall.SyscallN(uintptr(addr), raw...)
	return uint64(r1), nil
}

func (p *Process) check(addr, size uint64, want host.MemProt) error {
	begin, end, err := span(addr, size)
	if err != nil {
		return err
	}
	for cur := begin; cur < end; {
		var mbi windows.MemoryBasicInformation
		if err = windows.VirtualQuery(uintptr(cur), &mbi, unsafe.Sizeof(mbi)); err != nil {
			return fmt.Errorf("%w: %#x: %w", host.ErrAddressInvalid, cur, err)
		}
		if mbi.State != windows.MEM_COMMIT {
			return fmt.Errorf("%w: %#x is not committed", host.ErrAddressInvalid, cur)
		}
		if prot := fromPageProt(mbi.Protect); !prot.Has(want) || mbi.Protect&windows.PAGE_GUARD != 0 {
			return fmt.Errorf("%w: %#x is %v, need %v", host.ErrAccessViolation, cur, prot, want)
		}
		cur = uint64(mbi.BaseAddress) + uint64(mbi.RegionSize)
	}
	return nil
}

var pageProts = []struct {
	page uint32
	prot host.MemProt
}{
	{windows.PAGE_NOACCESS, host.MEM_PROT_NONE},
	{windows.PAGE_READONLY, host.MEM_PROT_READ},
	{windows.PAGE_READWRITE, host.MEM_PROT_READ | host.MEM_PROT_WRITE},
	{windows.PAGE_WRITECOPY, host.MEM_PROT_READ | host.MEM_PROT_WRITE},
	{windows.PAGE_EXECUTE, host.MEM_PROT_EXEC},
	{windows.PAGE_EXECUTE_READ, host.MEM_PROT_READ | host.MEM_PROT_EXEC},
	{windows.PAGE_EXECUTE_READWRITE, host.MEM_PROT_ALL},
	{windows.PAGE_EXECUTE_WRITECOPY, host.MEM_PROT_ALL},
}

func toPageProt(prot host.MemProt) uint32 {
	if prot.Has(host.MEM_PROT_WRITE) && !prot.Has(host.MEM_PROT_READ) {
		prot |= host.MEM_PROT_READ
	}
	for _, p := range pageProts {
		if p.prot == prot {
			return p.page
		}
	}
	return windows.PAGE_NOACCESS
}

func fromPageProt(page uint32) host.MemProt {
	page &^= windows.PAGE_GUARD | windows.PAGE_NOCACHE | windows.PAGE_WRITECOMBINE
	for _, p := range pageProts {
		if p.page == page {
			return p.prot
		}
	}
	return host.MEM_PROT_NONE
}
