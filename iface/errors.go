package iface

import "errors"

var (
	ErrFactoryNotFound   = errors.New("interface factory not found")
	ErrInterfaceNotFound = errors.New("interface not found")
)
