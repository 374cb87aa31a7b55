package siptransport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvLoopback(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	defer a.Close()

	b, err := New()
	require.NoError(t, err)
	defer b.Close()

	dst := &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: b.LocalPort()}
	require.NoError(t, a.Send([]byte("hello"), dst))

	data, from, err := b.Recv(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.NotNil(t, from)
}

func TestRecvTimesOutWhenIdle(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)
	defer tr.Close()

	_, _, err = tr.Recv(50 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestResolveServerDefaultsPort(t *testing.T) {
	addr, err := ResolveServer("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 5060, addr.Port)
}

func TestResolveServerExplicitPort(t *testing.T) {
	addr, err := ResolveServer("127.0.0.1:5070")
	require.NoError(t, err)
	assert.Equal(t, 5070, addr.Port)
}
