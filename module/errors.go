package module

import "errors"

var (
	ErrModuleNotFound = errors.New("module not found")
	ErrModuleClosed   = errors.New("module closed")
)
