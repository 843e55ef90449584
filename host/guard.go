package host

import (
	"errors"
	"fmt"

	"github.com/apex/log"
)

// WithProtection raises the protection of the pages covering
// [addr, addr+size) to prot, runs fn and puts the previous protection back.
// The restore runs on every exit path, including a failing or panicking fn.
// A failed widen skips fn entirely.
func WithProtection(proc Process, addr, size uint64, prot MemProt, fn func() error) (err error) {
	if size == 0 {
		return ErrArgumentInvalid
	}
	page := proc.PageSize()
	begin := AlignDown(addr, page)
	length := Align(addr+size, page) - begin
	old, err := proc.MemProtect(begin, length, prot)
	if err != nil {
		return fmt.Errorf("%w: widen %#x+%#x to %v: %w", ErrProtection, begin, length, prot, err)
	}
	log.WithFields(log.Fields{
		"addr": fmt.Sprintf("%#x", begin),
		"size": length,
		"from": old,
		"to":   prot,
	}).Debug("protection widened")
	defer func() {
		if _, rerr := proc.MemProtect(begin, length, old); rerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: restore %#x+%#x to %v: %w", ErrProtection, begin, length, old, rerr))
		}
	}()
	return fn()
}
