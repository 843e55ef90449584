// Package ctypes names the C primitive types used by generated foreign
// function signatures. Widths follow the Windows LLP64 model, where long
// stays 32 bits wide.
package ctypes

type Void struct{}

type (
	Char      = int8
	SChar     = int8
	UChar     = uint8
	Short     = int16
	UShort    = uint16
	Int       = int32
	UInt      = uint32
	Long      = int32
	ULong     = uint32
	LongLong  = int64
	ULongLong = uint64
	Float     = float32
	Double    = float64
)
