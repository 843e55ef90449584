// Package memhost simulates a host process: a sparse address space with
// per-page protections, loaded modules with loader reference counts and
// exported functions implemented in Go.
//
// Protections are enforced, so code that forgets to widen a page before
// writing fails here the same way it would fault in a real process.
package memhost

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/wnxd/membase/host"
)

type Func func(args ...uint64) uint64

type region struct {
	addr uint64
	data []byte
	prot []host.MemProt
}

type module struct {
	name     string
	base     uint64
	size     uint64
	refs     int
	exports  map[string]uint64
	failInfo bool
}

type Process struct {
	mu        sync.Mutex
	arch      host.Arch
	pageSize  uint64
	regions   []*region
	modules   []*module
	funcs     map[uint64]Func
	allocs    map[uint64]uint64
	nextAlloc uint64
	nextFunc  uint64
	onProtect func(addr, size uint64, prot host.MemProt) error
	protects  int
}

type Option func(*Process)

func WithArch(arch host.Arch) Option {
	return func(p *Process) {
		p.arch = arch
	}
}

func WithPageSize(size uint64) Option {
	return func(p *Process) {
		p.pageSize = size
	}
}

// OnProtect installs a hook consulted before every MemProtect. A non-nil
// error makes that call fail without changing anything.
func OnProtect(fn func(addr, size uint64, prot host.MemProt) error) Option {
	return func(p *Process) {
		p.onProtect = fn
	}
}

func New(opts ...Option) *Process {
	p := &Process{
		arch:      host.ARCH_X86_64,
		pageSize:  0x1000,
		funcs:     make(map[uint64]Func),
		allocs:    make(map[uint64]uint64),
		nextAlloc: 0x40000000,
		nextFunc:  0x7ffe0000,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Process) Close() error {
	return nil
}

func (p *Process) Arch() host.Arch {
	return p.arch
}

func (p *Process) PointerSize() uint64 {
	return p.arch.PointerSize()
}

func (p *Process) PageSize() uint64 {
	return p.pageSize
}

// Map makes [addr, addr+size) addressable with prot. addr must be page
// aligned; size is rounded up to whole pages.
func (p *Process) Map(addr, size uint64, prot host.MemProt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mapLocked(addr, size, prot)
}

func (p *Process) mapLocked(addr, size uint64, prot host.MemProt) error {
	if size == 0 || addr%p.pageSize != 0 {
		return host.ErrArgumentInvalid
	}
	size = host.Align(size, p.pageSize)
	for _, r := range p.regions {
		if addr < r.end() && r.addr < addr+size {
			return fmt.Errorf("%w: %#x+%#x overlaps %#x", host.ErrAddressInvalid, addr, size, r.addr)
		}
	}
	r := &region{
		addr: addr,
		data: make([]byte, size),
		prot: make([]host.MemProt, size/p.pageSize),
	}
	for i := range r.prot {
		r.prot[i] = prot
	}
	p.regions = append(p.regions, r)
	slices.SortFunc(p.regions, func(a, b *region) int {
		switch {
		case a.addr < b.addr:
			return -1
		case a.addr > b.addr:
			return 1
		}
		return 0
	})
	return nil
}

// Poke writes data regardless of page protection.
func (p *Process) Poke(addr uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyIn(addr, data, host.MEM_PROT_NONE)
}

// Peek reads memory regardless of page protection.
func (p *Process) Peek(addr, size uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyOut(addr, size, host.MEM_PROT_NONE)
}

func (p *Process) PokeWord(addr, value uint64) error {
	raw := make([]byte, p.PointerSize())
	for i := range raw {
		raw[i] = byte(value >> (8 * i))
	}
	return p.Poke(addr, raw)
}

func (p *Process) Protection(addr uint64) (host.MemProt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.find(addr)
	if r == nil {
		return 0, fmt.Errorf("%w: %#x", host.ErrAddressInvalid, addr)
	}
	return r.prot[(addr-r.addr)/p.pageSize], nil
}

// ProtectCalls counts successful MemProtect calls.
func (p *Process) ProtectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.protects
}

func (p *Process) MemRead(addr, size uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyOut(addr, size, host.MEM_PROT_READ)
}

func (p *Process) MemWrite(addr uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyIn(addr, data, host.MEM_PROT_WRITE)
}

func (p *Process) MemProtect(addr, size uint64, prot host.MemProt) (host.MemProt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size == 0 {
		return 0, host.ErrArgumentInvalid
	}
	begin := host.AlignDown(addr, p.pageSize)
	end := host.Align(addr+size, p.pageSize)
	if err := p.access(begin, end-begin, host.MEM_PROT_NONE, nil); err != nil {
		return 0, err
	}
	if p.onProtect != nil {
		if err := p.onProtect(begin, end-begin, prot); err != nil {
			return 0, err
		}
	}
	first := p.find(begin)
	old := first.prot[(begin-first.addr)/p.pageSize]
	p.access(begin, end-begin, host.MEM_PROT_NONE, func(r *region, off, n uint64) {
		for pg := off / p.pageSize; pg < (off+n)/p.pageSize; pg++ {
			r.prot[pg] = prot
		}
	})
	p.protects++
	return old, nil
}

func (p *Process) MemAlloc(size uint64, prot host.MemProt) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if size == 0 {
		return 0, host.ErrArgumentInvalid
	}
	size = host.Align(size, p.pageSize)
	addr := p.nextAlloc
	if err := p.mapLocked(addr, size, prot); err != nil {
		return 0, err
	}
	p.nextAlloc += size + p.pageSize
	p.allocs[addr] = size
	return addr, nil
}

func (p *Process) MemFree(addr uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.allocs[addr]; !ok {
		return fmt.Errorf("%w: %#x", host.ErrAddressInvalid, addr)
	}
	delete(p.allocs, addr)
	p.regions = slices.DeleteFunc(p.regions, func(r *region) bool { return r.addr == addr })
	return nil
}

// Allocations reports how many MemAlloc blocks are still live.
func (p *Process) Allocations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.allocs)
}

// AddModule maps a module image at base and registers it with the loader.
// The image starts zeroed; fill it with Poke.
func (p *Process) AddModule(name string, base, size uint64, prot host.MemProt) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lookup(name) != nil {
		return fmt.Errorf("%w: module %s already loaded", host.ErrArgumentInvalid, name)
	}
	if err := p.mapLocked(base, size, prot); err != nil {
		return err
	}
	p.modules = append(p.modules, &module{
		name:    name,
		base:    base,
		size:    size,
		exports: make(map[string]uint64),
	})
	return nil
}

// Export registers fn as an exported symbol of the named module and returns
// the address Call dispatches on.
func (p *Process) Export(moduleName, symbol string, fn Func) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.lookup(moduleName)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", host.ErrModuleInvalid, moduleName)
	}
	addr := p.nextFunc
	p.nextFunc += 0x10
	m.exports[symbol] = addr
	p.funcs[addr] = fn
	return addr, nil
}

// FailModuleInfo makes ModuleInfo fail for the named module.
func (p *Process) FailModuleInfo(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.lookup(name); m != nil {
		m.failInfo = true
	}
}

// Refs reports the loader reference count held on the named module.
func (p *Process) Refs(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m := p.lookup(name); m != nil {
		return m.refs
	}
	return 0
}

func (p *Process) ModuleOpen(name string) (host.ModuleHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.lookup(name)
	if m == nil {
		return 0, fmt.Errorf("%w: %s", host.ErrModuleInvalid, name)
	}
	m.refs++
	return host.ModuleHandle(m.base), nil
}

func (p *Process) ModuleInfo(h host.ModuleHandle) (host.ModuleInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.held(h)
	if err != nil {
		return host.ModuleInfo{}, err
	} else if m.failInfo {
		return host.ModuleInfo{}, fmt.Errorf("%w: module information unavailable for %s", host.ErrModuleInvalid, m.name)
	}
	return host.ModuleInfo{Base: m.base, Size: m.size}, nil
}

func (p *Process) ModuleClose(h host.ModuleHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.held(h)
	if err != nil {
		return err
	}
	m.refs--
	return nil
}

func (p *Process) ProcAddress(h host.ModuleHandle, name string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.held(h)
	if err != nil {
		return 0, err
	}
	addr, ok := m.exports[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s!%s", host.ErrSymbolNotFound, m.name, name)
	}
	return addr, nil
}

func (p *Process) Call(addr uint64, args ...uint64) (uint64, error) {
	p.mu.Lock()
	fn, ok := p.funcs[addr]
	p.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: no function at %#x", host.ErrAddressInvalid, addr)
	}
	return fn(args...), nil
}

func (p *Process) lookup(name string) *module {
	for _, m := range p.modules {
		if strings.EqualFold(m.name, name) {
			return m
		}
	}
	return nil
}

func (p *Process) held(h host.ModuleHandle) (*module, error) {
	for _, m := range p.modules {
		if m.base == uint64(h) {
			if m.refs == 0 {
				break
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %#x", host.ErrModuleInvalid, uint64(h))
}

func (p *Process) find(addr uint64) *region {
	for _, r := range p.regions {
		if addr >= r.addr && addr < r.end() {
			return r
		}
	}
	return nil
}

func (p *Process) access(addr, size uint64, want host.MemProt, fn func(r *region, off, n uint64)) error {
	end := addr + size
	if end < addr {
		return fmt.Errorf("%w: %#x+%#x wraps", host.ErrAddressInvalid, addr, size)
	}
	for cur := addr; cur < end; {
		r := p.find(cur)
		if r == nil {
			return fmt.Errorf("%w: %#x", host.ErrAddressInvalid, cur)
		}
		n := min(end, r.end()) - cur
		off := cur - r.addr
		for pg := off / p.pageSize; pg <= (off+n-1)/p.pageSize; pg++ {
			if !r.prot[pg].Has(want) {
				return fmt.Errorf("%w: %#x is %v, need %v", host.ErrAccessViolation, r.addr+pg*p.pageSize, r.prot[pg], want)
			}
		}
		if fn != nil {
			fn(r, off, n)
		}
		cur += n
	}
	return nil
}

func (p *Process) copyOut(addr, size uint64, want host.MemProt) ([]byte, error) {
	out := make([]byte, 0, size)
	err := p.access(addr, size, want, func(r *region, off, n uint64) {
		out = append(out, r.data[off:off+n]...)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Process) copyIn(addr uint64, data []byte, want host.MemProt) error {
	size := uint64(len(data))
	if err := p.access(addr, size, want, nil); err != nil {
		return err
	}
	return p.access(addr, size, want, func(r *region, off, n uint64) {
		copy(r.data[off:off+n], data[:n])
		data = data[n:]
	})
}

func (r *region) end() uint64 {
	return r.addr + uint64(len(r.data))
}
