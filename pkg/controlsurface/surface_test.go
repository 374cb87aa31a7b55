package controlsurface

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/dialtone/pkg/sipmsg"
)

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	return New(zerolog.Nop(), prometheus.NewRegistry())
}

// nextEventOfType waits up to a second for the next event of type typ,
// skipping the call_state events the engine's state machine publishes
// alongside initialization and registration.
func nextEventOfType(s *Surface, typ string) (Event, bool) {
	timeout := time.After(time.Second)
	for {
		select {
		case ev := <-s.Events():
			if ev.Type == typ {
				return ev, true
			}
		case <-timeout:
			return Event{}, false
		}
	}
}

func TestCommandsBeforeInitReturnErrNotInitialized(t *testing.T) {
	s := newTestSurface(t)
	assert.ErrorIs(t, s.Register("x", "u", "p"), ErrNotInitialized)
	assert.ErrorIs(t, s.Unregister(), ErrNotInitialized)
	assert.ErrorIs(t, s.Call("12345"), ErrNotInitialized)
	assert.ErrorIs(t, s.Hangup(), ErrNotInitialized)
}

func TestInitPublishesInitializedEvent(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Init())
	defer func() { _ = s.Shutdown(context.Background()) }()

	ev, ok := nextEventOfType(s, EventTypeInitialized)
	if !ok {
		t.Fatal("expected an initialized event")
	}
	assert.Equal(t, EventTypeInitialized, ev.Type)
}

func TestInitIsIdempotent(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Init())
	require.NoError(t, s.Init())
	defer func() { _ = s.Shutdown(context.Background()) }()
}

func TestHangupWithoutActiveCallIsErrNoActiveCall(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.Init())
	defer func() { _ = s.Shutdown(context.Background()) }()

	<-s.Events() // drain the first event (call_state INITIALIZED)
	assert.ErrorIs(t, s.Hangup(), ErrNoActiveCall)
}

func TestRegisterNoAuthPublishesRegistrationState(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	go func() {
		buf := make([]byte, 65535)
		n, from, readErr := conn.ReadFromUDP(buf)
		if readErr != nil {
			return
		}
		req, parseErr := sipmsg.ParseRequest(buf[:n])
		if parseErr != nil {
			return
		}
		to := req.To
		to.Tag = "remote-tag"
		resp := fmt.Sprintf("SIP/2.0 200 OK\r\nVia: %s\r\nFrom: %s\r\nTo: %s\r\nCall-ID: %s\r\nCSeq: %s\r\nContent-Length: 0\r\n\r\n",
			req.Via.String(), req.From.String(), to.String(), req.CallID, req.CSeq.String())
		_, _ = conn.WriteToUDP([]byte(resp), from)
	}()

	s := newTestSurface(t)
	require.NoError(t, s.Init())
	defer func() { _ = s.Shutdown(context.Background()) }()
	_, ok := nextEventOfType(s, EventTypeInitialized)
	require.True(t, ok, "expected an initialized event")

	err = s.Register(conn.LocalAddr().String(), "u", "p")
	require.NoError(t, err)

	ev, ok := nextEventOfType(s, EventTypeRegistrationState)
	if !ok {
		t.Fatal("expected a registration_state event")
	}
	require.Equal(t, EventTypeRegistrationState, ev.Type)
	assert.True(t, ev.Registered)
}

func TestDeviceNamesMapsDeviceSlice(t *testing.T) {
	names := deviceNames(nil)
	assert.Empty(t, names)
}

func TestPickRTPPortReturnsUsablePort(t *testing.T) {
	port, err := pickRTPPort()
	require.NoError(t, err)
	assert.Positive(t, port)
}
