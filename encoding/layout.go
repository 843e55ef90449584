package encoding

import (
	"fmt"
	"reflect"
	"sync"
	"unsafe"

	"github.com/modern-go/reflect2"
)

type handler = func(Stream, unsafe.Pointer) error

type layout struct {
	encode handler
	decode handler
	size   int
	align  int
}

var (
	layouts sync.Map
	padNull [8]byte
)

func layoutOf(typ reflect2.Type, bs int) (*layout, error) {
	key := [2]uintptr{uintptr(bs), typ.RType()}
	if v, ok := layouts.Load(key); ok {
		return v.(*layout), nil
	}
	l, err := build(typ, bs)
	if err != nil {
		return nil, err
	}
	layouts.Store(key, l)
	return l, nil
}

func build(typ reflect2.Type, bs int) (*layout, error) {
	switch typ.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return buildRaw(typ), nil
	case reflect.Int, reflect.Uint, reflect.Uintptr, reflect.UnsafePointer:
		return buildWord(typ, bs), nil
	case reflect.Array:
		return buildArray(typ.(reflect2.ArrayType), bs)
	case reflect.String:
		return buildString(bs), nil
	case reflect.Pointer:
		return buildPointer(typ.(reflect2.PtrType), bs)
	case reflect.Struct:
		return buildStruct(typ.(reflect2.StructType), bs)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, typ.String())
}

func buildRaw(typ reflect2.Type) *layout {
	size := int(typ.Type1().Size())
	return &layout{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
			return err
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
			return err
		},
		size:  size,
		align: typ.Type1().Align(),
	}
}

func buildWord(typ reflect2.Type, bs int) *layout {
	goSize := int(typ.Type1().Size())
	size := min(goSize, bs)
	pad := bs - size
	return &layout{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			_, err := stream.Write(unsafe.Slice((*byte)(ptr), size))
			if err != nil {
				return err
			} else if pad > 0 {
				_, err = stream.Write(padNull[:pad])
			}
			return err
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			clear(unsafe.Slice((*byte)(ptr), goSize))
			_, err := stream.Read(unsafe.Slice((*byte)(ptr), size))
			if err != nil {
				return err
			} else if pad > 0 {
				return stream.Skip(pad)
			}
			return nil
		},
		size:  bs,
		align: bs,
	}
}

func buildArray(typ reflect2.ArrayType, bs int) (*layout, error) {
	elem, err := layoutOf(typ.Elem(), bs)
	if err != nil {
		return nil, err
	}
	count := typ.Len()
	stride := typ.Elem().Type1().Size()
	each := func(h handler) handler {
		return func(stream Stream, ptr unsafe.Pointer) error {
			for i := 0; i < count; i++ {
				if err := h(stream, unsafe.Add(ptr, uintptr(i)*stride)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return &layout{
		encode: each(elem.encode),
		decode: each(elem.decode),
		size:   count * elem.size,
		align:  elem.align,
	}, nil
}

func buildString(bs int) *layout {
	return &layout{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			str := *(*string)(ptr)
			sub, err := stream.WriteStream(len(str) + 1)
			if err != nil {
				return err
			}
			return writeCString(sub, str)
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			sub, err := stream.ReadStream()
			if err != nil {
				return err
			} else if sub.Offset() == 0 {
				*(*string)(ptr) = ""
				return nil
			}
			str, err := sub.ReadString()
			if err == nil {
				*(*string)(ptr) = str
			}
			return err
		},
		size:  bs,
		align: bs,
	}
}

func buildPointer(typ reflect2.PtrType, bs int) (*layout, error) {
	elemType := typ.Elem()
	elem, err := layoutOf(elemType, bs)
	if err != nil {
		return nil, err
	}
	return &layout{
		encode: func(stream Stream, ptr unsafe.Pointer) error {
			p := *(*unsafe.Pointer)(ptr)
			if p == nil {
				_, err := stream.Write(padNull[:bs])
				return err
			}
			sub, err := stream.WriteStream(elem.size)
			if err != nil {
				return err
			}
			return elem.encode(sub, p)
		},
		decode: func(stream Stream, ptr unsafe.Pointer) error {
			sub, err := stream.ReadStream()
			if err != nil {
				return err
			} else if sub.Offset() == 0 {
				*(*unsafe.Pointer)(ptr) = nil
				return nil
			}
			p := *(*unsafe.Pointer)(ptr)
			if p == nil {
				p = elemType.UnsafeNew()
				*(*unsafe.Pointer)(ptr) = p
			}
			return elem.decode(sub, p)
		},
		size:  bs,
		align: bs,
	}, nil
}

type fieldLayout struct {
	*layout
	offset uintptr
	pad    int
}

func buildStruct(typ reflect2.StructType, bs int) (*layout, error) {
	count := typ.NumField()
	fields := make([]fieldLayout, 0, count)
	size, maxAlign := 0, 1
	for i := 0; i < count; i++ {
		field := typ.Field(i)
		if field.Tag().Get("encoding") == "ignore" {
			continue
		}
		l, err := layoutOf(field.Type(), bs)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name(), err)
		}
		at := align(size, l.align)
		fields = append(fields, fieldLayout{l, field.Offset(), at - size})
		size = at + l.size
		maxAlign = max(maxAlign, l.align)
	}
	total := align(size, maxAlign)
	tail := total - size
	walk := func(pick func(fieldLayout) handler) handler {
		return func(stream Stream, ptr unsafe.Pointer) error {
			for _, f := range fields {
				if f.pad > 0 {
					if err := stream.Skip(f.pad); err != nil {
						return err
					}
				}
				if err := pick(f)(stream, unsafe.Add(ptr, f.offset)); err != nil {
					return err
				}
			}
			if tail > 0 {
				return stream.Skip(tail)
			}
			return nil
		}
	}
	return &layout{
		encode: walk(func(f fieldLayout) handler { return f.encode }),
		decode: walk(func(f fieldLayout) handler { return f.decode }),
		size:   total,
		align:  maxAlign,
	}, nil
}

func align(a, b int) int {
	return (a + b - 1) &^ (b - 1)
}
