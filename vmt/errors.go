package vmt

import "errors"

var (
	ErrNullObject     = errors.New("null object")
	ErrEmptyTable     = errors.New("empty virtual table")
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrClosed         = errors.New("table closed")
)
