package host

import (
	"errors"
	"slices"

	"github.com/wnxd/membase/encoding"
)

// Import copies val into freshly allocated host memory and returns its
// address. Out-of-line data (string fields, pointers) gets blocks of its
// own. release frees every block and is safe to call more than once.
func Import(proc Process, val any) (addr uint64, release func() error, err error) {
	var addrs []uint64
	release = func() error {
		var errs []error
		for _, a := range slices.Backward(addrs) {
			errs = append(errs, proc.MemFree(a))
		}
		addrs = nil
		return errors.Join(errs...)
	}
	alloc := func(size uint64) (Pointer, error) {
		a, err := proc.MemAlloc(size, MEM_PROT_READ|MEM_PROT_WRITE)
		if err != nil {
			return Pointer{}, err
		}
		addrs = append(addrs, a)
		return ToPointer(proc, a), nil
	}
	size, err := encoding.EncodeSize(int(proc.PointerSize()), val)
	if err != nil {
		return 0, release, err
	}
	ptr, err := alloc(uint64(size))
	if err != nil {
		return 0, release, err
	}
	if err = encoding.Encode(PointerStream(ptr, alloc), val); err != nil {
		return 0, release, errors.Join(err, release())
	}
	return ptr.Address(), release, nil
}
