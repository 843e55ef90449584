package host

import "github.com/wnxd/membase/encoding"

type pointerStream struct {
	ptr   Pointer
	alloc func(uint64) (Pointer, error)
	size  int
}

// PointerStream walks host memory from ptr. alloc backs out-of-line data
// such as string fields and may be nil for read-only streams.
func PointerStream(ptr Pointer, alloc func(uint64) (Pointer, error)) encoding.Stream {
	return &pointerStream{ptr, alloc, int(ptr.proc.PointerSize())}
}

func (ps *pointerStream) BlockSize() int {
	return ps.size
}

func (ps *pointerStream) Offset() uint64 {
	return ps.ptr.Address()
}

func (ps *pointerStream) Skip(n int) error {
	ps.ptr = ps.ptr.Add(uint64(n))
	return nil
}

func (ps *pointerStream) Read(b []byte) (int, error) {
	n, err := ps.ptr.ReadAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) ReadString() (string, error) {
	str, err := ps.ptr.MemReadString()
	if err == nil {
		ps.Skip(len(str) + 1)
	}
	return str, err
}

func (ps *pointerStream) ReadStream() (encoding.Stream, error) {
	ptr, err := ps.ptr.MemReadPointer()
	if err != nil {
		return nil, err
	}
	ps.Skip(ps.size)
	return &pointerStream{ptr, ps.alloc, ps.size}, nil
}

func (ps *pointerStream) Write(b []byte) (int, error) {
	n, err := ps.ptr.WriteAt(b, 0)
	if err == nil {
		ps.Skip(n)
	}
	return n, err
}

func (ps *pointerStream) WriteStream(size int) (encoding.Stream, error) {
	if ps.alloc == nil {
		return nil, ErrNotImplemented
	}
	ptr, err := ps.alloc(uint64(size))
	if err != nil {
		return nil, err
	}
	if err = ps.ptr.MemWriteWord(ptr.Address()); err != nil {
		return nil, err
	}
	ps.Skip(ps.size)
	return &pointerStream{ptr, ps.alloc, ps.size}, nil
}
