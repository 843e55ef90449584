// Package vmt patches virtual function table slots of objects owned by the
// host process and puts them back.
//
// A Table snapshots the slots it finds when it is created. Every slot it
// hooks is written back to that snapshot when the table is closed, so the
// object is left as it was found. Writes to a slot are not synchronized
// with host threads calling through it.
package vmt

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/apex/log"

	"github.com/wnxd/membase/encoding"
	"github.com/wnxd/membase/host"
)

type Table struct {
	mu       sync.Mutex
	object   host.Pointer
	base     host.Pointer
	original []uint64
	override []uint64
	hooked   []bool
	closed   bool
}

// New reads the vtable of object. Slots are taken from index 0 up to the
// first value that is not positive when read as a signed pointer-sized
// integer.
func New(object host.Pointer) (*Table, error) {
	if object.IsNil() {
		return nil, ErrNullObject
	}
	base, err := object.MemReadPointer()
	if err != nil {
		return nil, fmt.Errorf("read vtable pointer of %#x: %w", object.Address(), err)
	} else if base.IsNil() {
		return nil, fmt.Errorf("%w: object %#x has a null vtable", ErrEmptyTable, object.Address())
	}
	bits := 8 * object.Process().PointerSize()
	stream := host.PointerStream(base, nil)
	var original []uint64
	for {
		var slot uintptr
		if err = encoding.Decode(stream, &slot); err != nil {
			return nil, fmt.Errorf("read slot %d of %#x: %w", len(original), base.Address(), err)
		}
		if !positive(uint64(slot), bits) {
			break
		}
		original = append(original, uint64(slot))
	}
	if len(original) == 0 {
		return nil, fmt.Errorf("%w: vtable %#x", ErrEmptyTable, base.Address())
	}
	log.WithFields(log.Fields{
		"object": fmt.Sprintf("%#x", object.Address()),
		"vtable": fmt.Sprintf("%#x", base.Address()),
		"slots":  len(original),
	}).Debug("vtable captured")
	return &Table{
		object:   object,
		base:     base,
		original: original,
		override: slices.Clone(original),
		hooked:   make([]bool, len(original)),
	}, nil
}

func positive(v, bits uint64) bool {
	sign := uint64(1) << (bits - 1)
	return v != 0 && v&sign == 0
}

// Close writes the captured value back into every hooked slot. A table
// that could not be fully restored stays open so Close can be retried.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	var errs []error
	for i, hooked := range t.hooked {
		if hooked {
			errs = append(errs, t.reset(i))
		}
	}
	err := errors.Join(errs...)
	if err == nil {
		t.closed = true
	}
	return err
}

func (t *Table) Len() int {
	return len(t.original)
}

func (t *Table) Object() host.Pointer {
	return t.object
}

// Base is the address of slot 0.
func (t *Table) Base() host.Pointer {
	return t.base
}

// Hook replaces slot i with fn. The page holding the slot is made writable
// only for the duration of the write.
func (t *Table) Hook(i int, fn uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	written, err := t.write(i, fn)
	if !written {
		return err
	}
	// the slot holds fn even if the protection could not be restored
	t.override[i] = fn
	t.hooked[i] = true
	log.WithFields(log.Fields{
		"vtable": fmt.Sprintf("%#x", t.base.Address()),
		"slot":   i,
		"fn":     fmt.Sprintf("%#x", fn),
	}).Debug("slot hooked")
	return err
}

// Reset restores slot i to its captured value. Resetting a slot that is not
// hooked does nothing.
func (t *Table) Reset(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(i); err != nil {
		return err
	}
	if !t.hooked[i] {
		return nil
	}
	return t.reset(i)
}

func (t *Table) reset(i int) error {
	written, err := t.write(i, t.original[i])
	if !written {
		return err
	}
	t.override[i] = t.original[i]
	t.hooked[i] = false
	log.WithFields(log.Fields{
		"vtable": fmt.Sprintf("%#x", t.base.Address()),
		"slot":   i,
	}).Debug("slot reset")
	return err
}

// Original returns the value slot i held when the table was created.
func (t *Table) Original(i int) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.original) {
		return 0, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(t.original))
	}
	return t.original[i], nil
}

// Override returns the last value written into slot i.
func (t *Table) Override(i int) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.override) {
		return 0, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(t.override))
	}
	return t.override[i], nil
}

// Current reads slot i from the live table.
func (t *Table) Current(i int) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.original) {
		return 0, fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(t.original))
	}
	return t.slot(i).MemReadWord()
}

func (t *Table) Hooked() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []int
	for i, hooked := range t.hooked {
		if hooked {
			out = append(out, i)
		}
	}
	return out
}

func (t *Table) check(i int) error {
	if t.closed {
		return ErrClosed
	} else if i < 0 || i >= len(t.original) {
		return fmt.Errorf("%w: %d of %d", ErrSlotOutOfRange, i, len(t.original))
	}
	return nil
}

func (t *Table) slot(i int) host.Pointer {
	return t.base.Add(uint64(i) * t.base.Process().PointerSize())
}

// write stores value into slot i. written reports whether the slot was
// changed, which may be true even when err is a failed protection restore.
func (t *Table) write(i int, value uint64) (written bool, err error) {
	slot := t.slot(i)
	proc := slot.Process()
	err = host.WithProtection(proc, slot.Address(), proc.PointerSize(), host.MEM_PROT_READ|host.MEM_PROT_WRITE, func() error {
		if err := slot.MemWriteWord(value); err != nil {
			return err
		}
		written = true
		return nil
	})
	return written, err
}
