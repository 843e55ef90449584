package encoding

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrNilValue        = errors.New("nil value")
	ErrNotPointer      = errors.New("decode target is not a pointer")
)
