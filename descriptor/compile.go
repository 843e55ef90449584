// Package descriptor compiles offset, byte pattern and function signature
// descriptors into Go source.
package descriptor

import (
	"go/token"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/wnxd/membase/signature"
)

type Offset struct {
	Name  string
	Value uint64
}

type Signature struct {
	Name    string
	Source  string
	Pattern signature.Pattern
}

type Param struct {
	Name string
	Type Type
}

type Function struct {
	Name   string
	Params []Param
	Return Type
}

// Unit is a compiled descriptor set. Tables are sorted by name and are nil
// when their import toggle is off.
type Unit struct {
	Package    string
	Name       string
	Console    bool
	Offsets    []Offset
	Signatures []Signature
	Functions  []Function
	Config     Config
}

// reserved holds names every generated package declares or imports.
var reserved = []string{"Name", "Console", "init", "signature", "ctypes", "unsafe"}

// ParseOffset reads a hexadecimal offset with an optional 0x prefix.
func ParseOffset(key, value string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(value, "0x"), 16, 64)
	if err != nil {
		return 0, &OffsetError{Key: key, Value: value, Err: err}
	}
	return v, nil
}

// Compile validates every enabled table of imp. The first error aborts,
// in key order, so the same descriptors always report the same error.
func Compile(cfg *Config, imp *Imports) (*Unit, error) {
	pkg := cfg.Package
	if pkg == "" {
		pkg = "imports"
	}
	if !token.IsIdentifier(pkg) || pkg == "_" {
		return nil, &NameError{Table: "package", Name: pkg, Reason: "not a valid package name"}
	}
	u := &Unit{Package: pkg, Name: cfg.Name, Console: cfg.Console, Config: *cfg}
	seen := make(map[string]string)
	for _, name := range reserved {
		seen[name] = "generated code"
	}
	declare := func(table, name string) error {
		if err := checkIdent(table, name); err != nil {
			return err
		} else if other, ok := seen[name]; ok {
			return &NameError{Table: table, Name: name, Reason: "already declared by " + other}
		}
		seen[name] = table
		return nil
	}

	if cfg.ImportOffsets {
		if imp.Offsets == nil {
			log.WithField("table", "offsets").Warn("import enabled but table missing")
		}
		u.Offsets = []Offset{}
		for _, key := range slices.Sorted(maps.Keys(imp.Offsets)) {
			if err := declare("offset", key); err != nil {
				return nil, err
			}
			v, err := ParseOffset(key, imp.Offsets[key])
			if err != nil {
				return nil, err
			}
			u.Offsets = append(u.Offsets, Offset{key, v})
		}
	}

	if cfg.ImportMemorySignatures {
		if imp.MemorySignatures == nil {
			log.WithField("table", "memory_signature").Warn("import enabled but table missing")
		}
		u.Signatures = []Signature{}
		for _, key := range slices.Sorted(maps.Keys(imp.MemorySignatures)) {
			if err := declare("memory signature", key); err != nil {
				return nil, err
			}
			src := imp.MemorySignatures[key]
			p, err := compilePattern(key, src)
			if err != nil {
				return nil, err
			}
			u.Signatures = append(u.Signatures, Signature{key, src, p})
		}
	}

	if cfg.ImportFunctionSignatures {
		if imp.FunctionSignatures == nil {
			log.WithField("table", "function_signatures").Warn("import enabled but table missing")
		}
		u.Functions = []Function{}
		for _, key := range slices.Sorted(maps.Keys(imp.FunctionSignatures)) {
			if err := declare("function signature", key); err != nil {
				return nil, err
			}
			fn, err := compileFunction(key, imp.FunctionSignatures[key])
			if err != nil {
				return nil, err
			}
			u.Functions = append(u.Functions, fn)
		}
	}
	return u, nil
}

func compilePattern(key, src string) (signature.Pattern, error) {
	fields := strings.Fields(src)
	if len(fields) == 0 {
		return signature.Pattern{}, &NameError{Table: "memory signature", Name: key, Reason: signature.ErrEmptyPattern.Error()}
	}
	elems := make([]signature.Elem, len(fields))
	for i, tok := range fields {
		var ok bool
		if elems[i], ok = signature.ParseToken(tok); !ok {
			log.WithFields(log.Fields{
				"signature": key,
				"token":     tok,
				"index":     i,
			}).Warn("token is not a hex byte, treating it as a wildcard")
		}
	}
	return signature.New(elems...), nil
}

func compileFunction(key string, sig FunctionSignature) (Function, error) {
	fn := Function{Name: key}
	names := make(map[string]bool)
	for _, arg := range sig.Arguments {
		if err := checkIdent("argument of "+key, arg.Name); err != nil {
			return Function{}, err
		} else if names[arg.Name] && arg.Name != "_" {
			return Function{}, &NameError{Table: "argument of " + key, Name: arg.Name, Reason: "declared twice"}
		}
		names[arg.Name] = true
		typ, ok := ValidateType(arg.Type)
		if !ok {
			return Function{}, &TypeError{Signature: key, Field: arg.Name, Token: arg.Type}
		}
		fn.Params = append(fn.Params, Param{arg.Name, typ})
	}
	ret, ok := ValidateType(sig.Return)
	if !ok {
		return Function{}, &TypeError{Signature: key, Field: "return", Token: sig.Return}
	}
	fn.Return = ret
	return fn, nil
}

func checkIdent(table, name string) error {
	switch {
	case !token.IsIdentifier(name):
		return &NameError{Table: table, Name: name, Reason: "not a valid Go identifier"}
	case name == "_" && !strings.HasPrefix(table, "argument"):
		return &NameError{Table: table, Name: name, Reason: "blank identifier"}
	}
	return nil
}
