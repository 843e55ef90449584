package descriptor

import "strings"

// Type is a validated C type token.
type Type struct {
	Token   string
	Go      string
	Pointer bool
}

var primitives = map[string]string{
	"void":      "ctypes.Void",
	"char":      "ctypes.Char",
	"schar":     "ctypes.SChar",
	"uchar":     "ctypes.UChar",
	"short":     "ctypes.Short",
	"ushort":    "ctypes.UShort",
	"int":       "ctypes.Int",
	"uint":      "ctypes.UInt",
	"long":      "ctypes.Long",
	"ulong":     "ctypes.ULong",
	"longlong":  "ctypes.LongLong",
	"ulonglong": "ctypes.ULongLong",
	"float":     "ctypes.Float",
	"double":    "ctypes.Double",
	"i8":        "int8",
	"u8":        "uint8",
	"i16":       "int16",
	"u16":       "uint16",
	"i32":       "int32",
	"u32":       "uint32",
	"i64":       "int64",
	"u64":       "uint64",
}

// ValidateType maps a type token to its Go form. Tokens are matched
// ignoring case; one leading '*' makes a pointer.
func ValidateType(token string) (Type, bool) {
	name, ptr := strings.CutPrefix(token, "*")
	name = strings.ToLower(name)
	goType, ok := primitives[name]
	if !ok {
		return Type{}, false
	}
	return Type{Token: name, Go: goType, Pointer: ptr}, true
}

func (t Type) IsVoid() bool {
	return t.Token == "void" && !t.Pointer
}

// GoType is the Go spelling of t. A void pointer is unsafe.Pointer.
func (t Type) GoType() string {
	switch {
	case t.Pointer && t.Token == "void":
		return "unsafe.Pointer"
	case t.Pointer:
		return "*" + t.Go
	}
	return t.Go
}

func (t Type) usesUnsafe() bool {
	return t.Pointer && t.Token == "void"
}

func (t Type) usesCTypes() bool {
	return strings.HasPrefix(t.GoType(), "ctypes.") || strings.HasPrefix(t.GoType(), "*ctypes.")
}
