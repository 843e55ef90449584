package encoding_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/membase/encoding"
	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/host/memhost"
)

type header struct {
	Tag   uint8
	Size  uintptr
	Flags [3]uint16
	Skip  func() `encoding:"ignore"`
}

func TestEncodeSize(t *testing.T) {
	tests := []struct {
		bs   int
		val  any
		want int
	}{
		{4, uint32(0), 4},
		{8, uintptr(0), 8},
		{4, uintptr(0), 4},
		{4, "abc", 4},
		{8, header{}, 24},
		{4, header{}, 16},
		{8, &header{}, 24},
		{8, [2]uintptr{}, 16},
	}
	for _, tt := range tests {
		got, err := encoding.EncodeSize(tt.bs, tt.val)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%T/%d", tt.val, tt.bs)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := encoding.EncodeSize(8, []byte{1})
	assert.ErrorIs(t, err, encoding.ErrUnsupportedType)
	_, err = encoding.EncodeSize(8, nil)
	assert.ErrorIs(t, err, encoding.ErrNilValue)
}

func TestDecodeTarget(t *testing.T) {
	p := memhost.New()
	stream := host.PointerStream(host.ToPointer(p, 0x10000), nil)
	var v uint32
	assert.ErrorIs(t, encoding.Decode(stream, v), encoding.ErrNotPointer)
	assert.ErrorIs(t, encoding.Decode(stream, (*uint32)(nil)), encoding.ErrNilValue)
}

func TestRoundTripWord32(t *testing.T) {
	p := memhost.New(memhost.WithArch(host.ARCH_X86))
	require.NoError(t, p.Map(0x10000, 0x1000, host.MEM_PROT_READ|host.MEM_PROT_WRITE))

	in := header{Tag: 9, Size: 0xdeadbeef, Flags: [3]uint16{1, 2, 3}}
	require.NoError(t, encoding.Encode(host.PointerStream(host.ToPointer(p, 0x10000), nil), in))

	raw, err := p.Peek(0x10000, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		9, 0, 0, 0,
		0xef, 0xbe, 0xad, 0xde,
		1, 0, 2, 0, 3, 0,
		0, 0,
	}, raw)

	out := header{Size: ^uintptr(0)}
	require.NoError(t, encoding.Decode(host.PointerStream(host.ToPointer(p, 0x10000), nil), &out))
	assert.Equal(t, in.Tag, out.Tag)
	assert.Equal(t, in.Size, out.Size)
	assert.Equal(t, in.Flags, out.Flags)
}

func TestDecodeSlotSequence(t *testing.T) {
	p := memhost.New()
	require.NoError(t, p.Map(0x10000, 0x1000, host.MEM_PROT_READ))
	for i, v := range []uint64{0x1111, 0x2222, 0} {
		require.NoError(t, p.PokeWord(0x10000+uint64(i)*8, v))
	}

	stream := host.PointerStream(host.ToPointer(p, 0x10000), nil)
	var got []uintptr
	for {
		var slot uintptr
		require.NoError(t, encoding.Decode(stream, &slot))
		if slot == 0 {
			break
		}
		got = append(got, slot)
	}
	assert.Equal(t, []uintptr{0x1111, 0x2222}, got)
	assert.Equal(t, uint64(0x10018), stream.Offset())
}

func TestNilPointerField(t *testing.T) {
	type node struct {
		Value uint32
		Next  *uint32
		Raw   unsafe.Pointer
	}
	p := memhost.New()
	require.NoError(t, p.Map(0x10000, 0x1000, host.MEM_PROT_READ|host.MEM_PROT_WRITE))
	require.NoError(t, encoding.Encode(host.PointerStream(host.ToPointer(p, 0x10000), nil), node{Value: 5}))

	var out node
	require.NoError(t, encoding.Decode(host.PointerStream(host.ToPointer(p, 0x10000), nil), &out))
	assert.Equal(t, uint32(5), out.Value)
	assert.Nil(t, out.Next)
	assert.Nil(t, out.Raw)
}
