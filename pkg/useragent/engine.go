// Package useragent implements the SIP transaction/dialog engine:
// REGISTER, INVITE, ACK, and BYE construction, the provisional-skipping
// response loop, and the single-retry Digest authentication handshake.
package useragent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arzzra/dialtone/pkg/dialogstate"
	"github.com/arzzra/dialtone/pkg/digestauth"
	"github.com/arzzra/dialtone/pkg/sipmsg"
	"github.com/arzzra/dialtone/pkg/siptransport"
)

// ResponseTimeout bounds how long the engine waits for a final
// response to any single request before giving up (SPEC_FULL.md §4.3:
// "on the order of 10s per attempt").
const ResponseTimeout = 10 * time.Second

// InviteResult is returned by Invite on success: enough information
// for the caller (the control surface) to start the RTP session.
type InviteResult struct {
	RemoteIP    string
	RemotePort  int
	PayloadType uint8
}

// Engine drives the signaling half of a single SIP account: one
// Registration and at most one active call Dialog, matching the
// single-account/single-call assumption of SPEC_FULL.md §9.
type Engine struct {
	mu sync.Mutex

	transport  *siptransport.Transport
	serverAddr *net.UDPAddr
	domain     string
	user       string
	password   string

	registration *dialogstate.Registration
	dialog       *dialogstate.Dialog

	csm    *dialogstate.CallStateMachine
	logger zerolog.Logger
}

// New builds an Engine bound to a fresh SIP transport. onStateChange
// is forwarded to the underlying call state machine (see
// pkg/dialogstate) and ultimately reaches the control surface's event
// stream.
func New(logger zerolog.Logger, onStateChange func(state string)) (*Engine, error) {
	transport, err := siptransport.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	e := &Engine{
		transport: transport,
		csm:       dialogstate.NewCallStateMachine(onStateChange),
		logger:    logger.With().Str("component", "useragent").Logger(),
	}
	if err := e.csm.Fire(context.Background(), dialogstate.EventInitialize); err != nil {
		transport.Close()
		return nil, fmt.Errorf("%w: initializing state machine: %v", ErrProtocol, err)
	}
	return e, nil
}

// LocalIP returns the discovered local address the transport will
// advertise in Via/Contact/SDP.
func (e *Engine) LocalIP() string { return e.transport.LocalIP() }

// LocalSIPPort returns the ephemeral port the SIP socket is bound to.
func (e *Engine) LocalSIPPort() int { return e.transport.LocalPort() }

// State returns the current call_state value.
func (e *Engine) State() string { return e.csm.Current() }

// Close releases the SIP socket. The engine is not usable afterwards.
func (e *Engine) Close() error {
	return e.transport.Close()
}

// sendAndAwaitFinal sends req and loops on the transport until a
// non-1xx response matching req's Call-ID arrives, or timeout elapses.
// Provisional responses (1xx) are discarded per SPEC_FULL.md §4.3/§9.
func (e *Engine) sendAndAwaitFinal(req *sipmsg.Request, timeout time.Duration) (*sipmsg.Response, error) {
	raw := req.Marshal()
	if err := e.transport.Send(raw, e.serverAddr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	e.logger.Debug().Str("method", req.Method).Str("call_id", req.CallID).Msg("sent SIP request")

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: no final response to %s", ErrTimeout, req.Method)
		}
		data, _, err := e.transport.Recv(remaining)
		if err != nil {
			if errors.Is(err, siptransport.ErrTimeout) {
				return nil, fmt.Errorf("%w: no final response to %s", ErrTimeout, req.Method)
			}
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		resp, err := sipmsg.ParseResponse(data)
		if err != nil {
			e.logger.Warn().Err(err).Msg("dropping malformed SIP response")
			continue
		}
		if resp.CallID != req.CallID {
			continue // not a response to this transaction
		}
		if resp.IsProvisional() {
			e.logger.Debug().Int("status", resp.StatusCode).Msg("discarding provisional response")
			continue
		}
		return resp, nil
	}
}

// challengeHeader returns the challenge header value and whether it
// should be echoed back as Authorization (WWW-Authenticate) or
// Proxy-Authorization (Proxy-Authenticate).
func challengeHeader(resp *sipmsg.Response) (value string, authHeaderName string, ok bool) {
	if v, found := resp.Headers.Get("WWW-Authenticate"); found {
		return v, "Authorization", true
	}
	if v, found := resp.Headers.Get("Proxy-Authenticate"); found {
		return v, "Proxy-Authorization", true
	}
	return "", "", false
}

// authenticate computes Digest credentials for method/uri from resp's
// challenge header.
func authenticate(resp *sipmsg.Response, method, uri, user, password string) (credHeader, headerName string, err error) {
	raw, headerName, ok := challengeHeader(resp)
	if !ok {
		return "", "", fmt.Errorf("%w: 401/407 missing WWW-Authenticate/Proxy-Authenticate", ErrAuthFailed)
	}
	chal, err := digestauth.ParseChallenge(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	cred, err := digestauth.Compute(chal, method, uri, user, password)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return cred.String(), headerName, nil
}
