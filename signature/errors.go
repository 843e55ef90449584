package signature

import "errors"

var (
	ErrNotFound     = errors.New("signature not found")
	ErrAmbiguous    = errors.New("signature ambiguous")
	ErrEmptyPattern = errors.New("empty pattern")
)
