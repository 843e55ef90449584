package host

import "errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrAddressInvalid  = errors.New("address invalid")
	ErrAccessViolation = errors.New("access violation")
	ErrProtection      = errors.New("protection change failed")
	ErrModuleInvalid   = errors.New("module handle invalid")
	ErrSymbolNotFound  = errors.New("symbol not found")
	ErrArgumentInvalid = errors.New("argument invalid")
	ErrNotImplemented  = errors.New("not implemented")
)
