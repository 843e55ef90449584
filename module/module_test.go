package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/membase/host"
	"github.com/wnxd/membase/host/memhost"
)

func newHost(t *testing.T) *memhost.Process {
	t.Helper()
	p := memhost.New()
	require.NoError(t, p.AddModule("client.dll", 0x1000, 0x100, host.MEM_PROT_READ|host.MEM_PROT_EXEC))
	return p
}

func TestResolve(t *testing.T) {
	p := newHost(t)

	img, err := Resolve(p, "Client.DLL")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Refs("client.dll"))

	base, end := img.Region()
	assert.Equal(t, uint64(0x1000), base)
	assert.Equal(t, uint64(0x10ff), end)
	assert.Equal(t, uint64(0x100), img.Size())
	assert.True(t, img.Contains(0x10ff))
	assert.False(t, img.Contains(0x1100))
	assert.Equal(t, uint64(0x1234), img.Offset(0x234))

	require.NoError(t, img.Close())
	require.NoError(t, img.Close())
	assert.Equal(t, 0, p.Refs("client.dll"))

	_, err = img.ProcAddress("CreateInterface")
	assert.ErrorIs(t, err, ErrModuleClosed)
}

func TestResolveMissing(t *testing.T) {
	p := newHost(t)
	_, err := Resolve(p, "server.dll")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestResolveInfoFailureReleases(t *testing.T) {
	p := newHost(t)
	p.FailModuleInfo("client.dll")

	img, err := Resolve(p, "client.dll")
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Equal(t, 0, p.Refs("client.dll"))
}

func TestResolveTwice(t *testing.T) {
	p := newHost(t)
	a, err := Resolve(p, "client.dll")
	require.NoError(t, err)
	b, err := Resolve(p, "client.dll")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Refs("client.dll"))

	require.NoError(t, a.Close())
	assert.Equal(t, 1, p.Refs("client.dll"))
	require.NoError(t, b.Close())
	assert.Equal(t, 0, p.Refs("client.dll"))
}
