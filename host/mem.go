package host

import "strings"

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

func (p MemProt) Has(want MemProt) bool {
	return p&want == want
}

func (p MemProt) String() string {
	var sb strings.Builder
	for _, f := range [...]struct {
		bit MemProt
		c   byte
	}{{MEM_PROT_READ, 'r'}, {MEM_PROT_WRITE, 'w'}, {MEM_PROT_EXEC, 'x'}} {
		if p&f.bit != 0 {
			sb.WriteByte(f.c)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}

func (r MemRegion) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}
