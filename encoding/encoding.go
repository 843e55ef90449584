// Package encoding lays Go values out the way a C compiler targeting the
// host would, and moves them through a Stream.
//
// Word-sized kinds (int, uint, uintptr, unsafe.Pointer) take the stream's
// block size. Strings, pointers and string fields are stored out of line and
// referenced by a block-sized address, except at the top level where a
// string is written in place as a NUL-terminated byte sequence.
package encoding

import (
	"reflect"
	"unsafe"

	"github.com/modern-go/reflect2"
)

func EncodeSize(blockSize int, val any) (int, error) {
	typ, ptr, err := target(val)
	if err != nil {
		return 0, err
	}
	if typ.Kind() == reflect.String {
		return len(*(*string)(ptr)) + 1, nil
	}
	l, err := layoutOf(typ, blockSize)
	if err != nil {
		return 0, err
	}
	return l.size, nil
}

func Encode(stream Stream, val any) error {
	typ, ptr, err := target(val)
	if err != nil {
		return err
	}
	if typ.Kind() == reflect.String {
		return writeCString(stream, *(*string)(ptr))
	}
	l, err := layoutOf(typ, stream.BlockSize())
	if err != nil {
		return err
	}
	return l.encode(stream, ptr)
}

func Decode(stream Stream, val any) error {
	if val == nil {
		return ErrNotPointer
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() != reflect.Pointer {
		return ErrNotPointer
	}
	ptr := reflect2.PtrOf(val)
	if ptr == nil {
		return ErrNilValue
	}
	elem := typ.(reflect2.PtrType).Elem()
	if elem.Kind() == reflect.String {
		str, err := stream.ReadString()
		if err != nil {
			return err
		}
		*(*string)(ptr) = str
		return nil
	}
	l, err := layoutOf(elem, stream.BlockSize())
	if err != nil {
		return err
	}
	return l.decode(stream, ptr)
}

func target(val any) (reflect2.Type, unsafe.Pointer, error) {
	if val == nil {
		return nil, nil, ErrNilValue
	}
	typ := reflect2.TypeOf(val)
	if typ.Kind() == reflect.Pointer {
		ptr := reflect2.PtrOf(val)
		if ptr == nil {
			return nil, nil, ErrNilValue
		}
		return typ.(reflect2.PtrType).Elem(), ptr, nil
	}
	v := reflect.New(typ.Type1())
	v.Elem().Set(reflect.ValueOf(val))
	return typ, v.UnsafePointer(), nil
}

func writeCString(stream Stream, str string) error {
	_, err := stream.Write(append([]byte(str), 0))
	return err
}
