package vmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/host/memhost"
)

const (
	objectAddr = 0x50000
	vtableAddr = 0x60000
	slotCount  = 6
)

func slotFn(i int) uint64 {
	return 0x401000 + uint64(i)*0x10
}

func newObject(t *testing.T, opts ...memhost.Option) *memhost.Process {
	t.Helper()
	p := memhost.New(opts...)
	require.NoError(t, p.Map(objectAddr, 0x1000, host.MEM_PROT_READ|host.MEM_PROT_WRITE))
	require.NoError(t, p.Map(vtableAddr, 0x1000, host.MEM_PROT_READ))
	require.NoError(t, p.PokeWord(objectAddr, vtableAddr))
	size := p.PointerSize()
	for i := 0; i < slotCount; i++ {
		require.NoError(t, p.PokeWord(vtableAddr+uint64(i)*size, slotFn(i)))
	}
	return p
}

func TestNew(t *testing.T) {
	for _, arch := range []host.Arch{host.ARCH_X86, host.ARCH_X86_64} {
		t.Run(arch.String(), func(t *testing.T) {
			p := newObject(t, memhost.WithArch(arch))
			table, err := New(host.ToPointer(p, objectAddr))
			require.NoError(t, err)
			assert.Equal(t, slotCount, table.Len())
			assert.Equal(t, uint64(vtableAddr), table.Base().Address())
			for i := 0; i < slotCount; i++ {
				orig, err := table.Original(i)
				require.NoError(t, err)
				assert.Equal(t, slotFn(i), orig)
			}
		})
	}
}

func TestNewStopsAtNegative(t *testing.T) {
	p := newObject(t, memhost.WithArch(host.ARCH_X86))
	require.NoError(t, p.PokeWord(vtableAddr+3*4, 0x80001000))

	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)
	assert.Equal(t, 3, table.Len())
}

func TestNewErrors(t *testing.T) {
	p := newObject(t)
	_, err := New(host.ToPointer(p, 0))
	assert.ErrorIs(t, err, ErrNullObject)

	require.NoError(t, p.PokeWord(vtableAddr, 0))
	_, err = New(host.ToPointer(p, objectAddr))
	assert.ErrorIs(t, err, ErrEmptyTable)

	require.NoError(t, p.PokeWord(objectAddr, 0))
	_, err = New(host.ToPointer(p, objectAddr))
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestNewUnterminated(t *testing.T) {
	p := memhost.New()
	require.NoError(t, p.Map(objectAddr, 0x1000, host.MEM_PROT_READ|host.MEM_PROT_WRITE))
	require.NoError(t, p.Map(vtableAddr, 0x1000, host.MEM_PROT_READ))
	require.NoError(t, p.PokeWord(objectAddr, vtableAddr))
	for off := uint64(0); off < 0x1000; off += 8 {
		require.NoError(t, p.PokeWord(vtableAddr+off, 0x401000))
	}
	_, err := New(host.ToPointer(p, objectAddr))
	assert.ErrorIs(t, err, host.ErrAddressInvalid)
}

func TestHook(t *testing.T) {
	p := newObject(t)
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)

	for i := 0; i < slotCount; i++ {
		require.NoError(t, table.Hook(i, 0xdead0000+uint64(i)))
	}
	for i := 0; i < slotCount; i++ {
		orig, err := table.Original(i)
		require.NoError(t, err)
		assert.Equal(t, slotFn(i), orig)

		live, err := table.Current(i)
		require.NoError(t, err)
		assert.Equal(t, 0xdead0000+uint64(i), live)

		over, err := table.Override(i)
		require.NoError(t, err)
		assert.Equal(t, live, over)
	}

	prot, err := p.Protection(vtableAddr)
	require.NoError(t, err)
	assert.Equal(t, host.MEM_PROT_READ, prot)

	require.NoError(t, table.Reset(4))
	live, err := table.Current(4)
	require.NoError(t, err)
	assert.Equal(t, slotFn(4), live)
	require.NoError(t, table.Reset(4))
	assert.Equal(t, []int{0, 1, 2, 3, 5}, table.Hooked())
}

func TestHookOutOfRange(t *testing.T) {
	p := newObject(t)
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)

	assert.ErrorIs(t, table.Hook(slotCount, 1), ErrSlotOutOfRange)
	assert.ErrorIs(t, table.Hook(-1, 1), ErrSlotOutOfRange)
	assert.ErrorIs(t, table.Reset(slotCount), ErrSlotOutOfRange)
	_, err = table.Original(slotCount)
	assert.ErrorIs(t, err, ErrSlotOutOfRange)
}

func TestCloseRestores(t *testing.T) {
	p := newObject(t)
	before, err := p.Peek(vtableAddr, 0x1000)
	require.NoError(t, err)

	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)
	require.NoError(t, table.Hook(2, 0xaaaa))
	require.NoError(t, table.Hook(5, 0xbbbb))
	require.NoError(t, table.Hook(5, 0xcccc))
	require.NoError(t, table.Close())

	after, err := p.Peek(vtableAddr, 0x1000)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	calls := p.ProtectCalls()
	require.NoError(t, table.Close())
	assert.Equal(t, calls, p.ProtectCalls())
	assert.ErrorIs(t, table.Hook(1, 1), ErrClosed)
}

func TestCloseUntouched(t *testing.T) {
	p := newObject(t)
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)
	require.NoError(t, table.Close())
	assert.Zero(t, p.ProtectCalls())
}

func TestHookWidenFails(t *testing.T) {
	denied := errors.New("denied")
	p := newObject(t, memhost.OnProtect(func(addr, size uint64, prot host.MemProt) error {
		return denied
	}))
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)

	err = table.Hook(1, 0xaaaa)
	assert.ErrorIs(t, err, host.ErrProtection)
	assert.ErrorIs(t, err, denied)

	live, err := table.Current(1)
	require.NoError(t, err)
	assert.Equal(t, slotFn(1), live)
	assert.Empty(t, table.Hooked())
}

func TestHookRestoreFails(t *testing.T) {
	denied := errors.New("denied")
	fail := false
	p := newObject(t, memhost.OnProtect(func(addr, size uint64, prot host.MemProt) error {
		if fail && prot == host.MEM_PROT_READ {
			return denied
		}
		return nil
	}))
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)
	require.NoError(t, table.Hook(3, 0xaaaa))

	fail = true
	err = table.Close()
	assert.ErrorIs(t, err, host.ErrProtection)
	assert.ErrorIs(t, err, denied)

	fail = false
	require.NoError(t, table.Close())
	live, err := table.Current(3)
	require.NoError(t, err)
	assert.Equal(t, slotFn(3), live)
}

func TestHookRestoreFailsKeepsSlot(t *testing.T) {
	denied := errors.New("denied")
	fail := true
	p := newObject(t, memhost.OnProtect(func(addr, size uint64, prot host.MemProt) error {
		if fail && prot == host.MEM_PROT_READ {
			return denied
		}
		return nil
	}))
	before, err := p.Peek(vtableAddr, slotCount*p.PointerSize())
	require.NoError(t, err)
	table, err := New(host.ToPointer(p, objectAddr))
	require.NoError(t, err)

	err = table.Hook(2, 0xaaaa)
	assert.ErrorIs(t, err, host.ErrProtection)
	assert.ErrorIs(t, err, denied)
	live, err := table.Current(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xaaaa), live)
	assert.Equal(t, []int{2}, table.Hooked())
	override, err := table.Override(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xaaaa), override)

	fail = false
	require.NoError(t, table.Close())
	after, err := p.Peek(vtableAddr, slotCount*p.PointerSize())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, table.Hooked())
}
