package host

import (
	"bytes"
	"encoding/binary"
)

type Pointer struct {
	proc Process
	addr uint64
}

func ToPointer(proc Process, addr uint64) Pointer {
	return Pointer{proc, addr}
}

func (p Pointer) Process() Process {
	return p.proc
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.proc, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.proc, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.proc.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.proc.MemWrite(p.addr, data)
}

func (p Pointer) MemReadString() (string, error) {
	var data []byte
	const chunk = 0x10
	for begin := p.addr; ; begin += chunk {
		buf, err := p.proc.MemRead(begin, chunk)
		if err != nil {
			// the string may end right before an unmapped page
			if buf, err = p.readTail(begin, chunk); err != nil {
				return "", err
			}
		}
		i := bytes.IndexByte(buf, 0)
		if i == -1 {
			data = append(data, buf...)
		} else {
			data = append(data, buf[:i]...)
			break
		}
	}
	return string(data), nil
}

func (p Pointer) readTail(begin, size uint64) ([]byte, error) {
	var out []byte
	for addr := begin; addr < begin+size; addr++ {
		b, err := p.proc.MemRead(addr, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, b[0])
		if b[0] == 0 {
			break
		}
	}
	return out, nil
}

func (p Pointer) MemReadWord() (uint64, error) {
	size := p.proc.PointerSize()
	raw, err := p.proc.MemRead(p.addr, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 4:
		return uint64(binary.LittleEndian.Uint32(raw)), nil
	case 8:
		return binary.LittleEndian.Uint64(raw), nil
	}
	return 0, ErrArchUnsupported
}

func (p Pointer) MemWriteWord(value uint64) error {
	raw := make([]byte, p.proc.PointerSize())
	switch len(raw) {
	case 4:
		binary.LittleEndian.PutUint32(raw, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(raw, value)
	default:
		return ErrArchUnsupported
	}
	return p.proc.MemWrite(p.addr, raw)
}

func (p Pointer) MemReadPointer() (Pointer, error) {
	addr, err := p.MemReadWord()
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{p.proc, addr}, nil
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.proc.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	err = p.proc.MemWrite(p.addr+uint64(off), b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
