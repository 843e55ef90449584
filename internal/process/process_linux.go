//go:build linux

package process

import (
	"bufio"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/wnxd/membase/host"
)

type mapping struct {
	host.MemRegion
	path string
}

type moduleRef struct {
	path string
	info host.ModuleInfo
	refs int
}

type Process struct {
	allocator
	page    uint64
	mu      sync.Mutex
	modules map[host.ModuleHandle]*moduleRef
}

func New() (*Process, error) {
	p := &Process{
		page:    uint64(unix.Getpagesize()),
		modules: make(map[host.ModuleHandle]*moduleRef),
	}
	p.allocator.ctor()
	return p, nil
}

func (p *Process) Close() error {
	var last error
	p.allocator.each(func(addr, size uint64) {
		if err := unix.Munmap(view(addr, size)); err != nil {
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
	maps, err := readMaps()
	if err != nil {
		return 0, err
	}
	old := host.MEM_PROT_NONE
	if m, ok := findMapping(maps, addr); ok {
		old = m.Prot
	} else {
		return 0, fmt.Errorf("%w: %#x is not mapped", host.ErrAddressInvalid, addr)
	}
	if err = unix.Mprotect(view(addr, size), toUnixProt(prot)); err != nil {
		return 0, err
	}
	return old, nil
}

func (p *Process) MemAlloc(size uint64, prot host.MemProt) (uint64, error) {
	size = host.Align(size, p.page)
	b, err := unix.Mmap(-1, 0, int(size), toUnixProt(prot), unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return 0, err
	}
	addr := uint64(uintptr(unsafe.Pointer(&b[0])))
	p.allocator.store(addr, size)
	return addr, nil
}

func (p *Process) MemFree(addr uint64) error {
	size, err := p.allocator.take(addr)
	if err != nil {
		return err
	}
	return unix.Munmap(view(addr, size))
}

func (p *Process) ModuleOpen(name string) (host.ModuleHandle, error) {
	maps, err := readMaps()
	if err != nil {
		return 0, err
	}
	var ref *moduleRef
	for _, m := range maps {
		if m.path == "" || !strings.EqualFold(filepath.Base(m.path), name) {
			continue
		}
		if ref == nil {
			ref = &moduleRef{path: m.path, info: host.ModuleInfo{Base: m.Addr}}
		} else if m.path != ref.path {
			continue
		}
		ref.info.Size = m.End() - ref.info.Base
	}
	if ref == nil {
		return 0, fmt.Errorf("%w: %s", host.ErrModuleInvalid, name)
	}
	h := host.ModuleHandle(ref.info.Base)
	p.mu.Lock()
	defer p.mu.Unlock()
	if held, ok := p.modules[h]; ok {
		held.refs++
	} else {
		ref.refs = 1
		p.modules[h] = ref
	}
	return h, nil
}

func (p *Process) ModuleInfo(h host.ModuleHandle) (host.ModuleInfo, error) {
	ref, err := p.held(h)
	if err != nil {
		return host.ModuleInfo{}, err
	}
	return ref.info, nil
}

func (p *Process) ModuleClose(h host.ModuleHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.modules[h]
	if !ok {
		return fmt.Errorf("%w: %#x", host.ErrModuleInvalid, uint64(h))
	}
	if ref.refs--; ref.refs == 0 {
		delete(p.modules, h)
	}
	return nil
}

func (p *Process) ProcAddress(h host.ModuleHandle, name string) (uint64, error) {
	ref, err := p.held(h)
	if err != nil {
		return 0, err
	}
	f, err := elf.Open(ref.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	bias := ref.info.Base
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD {
			bias -= host.AlignDown(prog.Vaddr, p.page)
			break
		}
	}
	syms, err := f.DynamicSymbols()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", host.ErrSymbolNotFound, name, err)
	}
	for _, sym := range syms {
		if sym.Name == name && sym.Section != elf.SHN_UNDEF {
			return bias + sym.Value, nil
		}
	}
	return 0, fmt.Errorf("%w: %s!%s", host.ErrSymbolNotFound, filepath.Base(ref.path), name)
}

func (p *Process) Call(addr uint64, args ...uint64) (uint64, error) {
	return 0, fmt.Errorf("%w: foreign calls on linux", host.ErrNotImplemented)
}

func (p *Process) held(h host.ModuleHandle) (*moduleRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, ok := p.modules[h]
	if !ok {
		return nil, fmt.Errorf("%w: %#x", host.ErrModuleInvalid, uint64(h))
	}
	return ref, nil
}

func (p *Process) check(addr, size uint64, want host.MemProt) error {
	begin, end, err := span(addr, size)
	if err != nil {
		return err
	}
	maps, err := readMaps()
	if err != nil {
		return err
	}
	for cur := begin; cur < end; {
		m, ok := findMapping(maps, cur)
		if !ok {
			return fmt.Errorf("%w: %#x", host.ErrAddressInvalid, cur)
		} else if !m.Prot.Has(want) {
			return fmt.Errorf("%w: %#x is %v, need %v", host.ErrAccessViolation, cur, m.Prot, want)
		}
		cur = m.End()
	}
	return nil
}

func readMaps() ([]mapping, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var maps []mapping
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m, ok := parseMapping(scanner.Text())
		if ok {
			maps = append(maps, m)
		}
	}
	return maps, scanner.Err()
}

// parseMapping reads one /proc/<pid>/maps line:
// start-end perms offset dev inode [path]
func parseMapping(line string) (mapping, bool) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return mapping{}, false
	}
	lo, hi, ok := strings.Cut(fields[0], "-")
	if !ok {
		return mapping{}, false
	}
	start, err := strconv.ParseUint(lo, 16, 64)
	if err != nil {
		return mapping{}, false
	}
	end, err := strconv.ParseUint(hi, 16, 64)
	if err != nil || end <= start {
		return mapping{}, false
	}
	var prot host.MemProt
	perms := fields[1]
	if strings.HasPrefix(perms, "r") {
		prot |= host.MEM_PROT_READ
	}
	if len(perms) > 1 && perms[1] == 'w' {
		prot |= host.MEM_PROT_WRITE
	}
	if len(perms) > 2 && perms[2] == 'x' {
		prot |= host.MEM_PROT_EXEC
	}
	m := mapping{MemRegion: host.MemRegion{Addr: start, Size: end - start, Prot: prot}}
	if len(fields) > 5 {
		m.path = strings.Join(fields[5:], " ")
	}
	return m, true
}

func findMapping(maps []mapping, addr uint64) (mapping, bool) {
	for _, m := range maps {
		if m.Contains(addr) {
			return m, true
		}
	}
	return mapping{}, false
}

func toUnixProt(prot host.MemProt) int {
	var out int
	if prot.Has(host.MEM_PROT_READ) {
		out |= unix.PROT_READ
	}
	if prot.Has(host.MEM_PROT_WRITE) {
		out |= unix.PROT_WRITE
	}
	if prot.Has(host.MEM_PROT_EXEC) {
		out |= unix.PROT_EXEC
	}
	return out
}
