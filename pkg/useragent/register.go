package useragent

import (
	"context"
	"fmt"
	"net"

	"github.com/arzzra/dialtone/pkg/dialogstate"
	"github.com/arzzra/dialtone/pkg/digestauth"
	"github.com/arzzra/dialtone/pkg/sipmsg"
	"github.com/arzzra/dialtone/pkg/siptransport"
)

// Register performs REGISTER against server for user/password,
// including a single Digest-authenticated retry if challenged.
// expires is advertised in the Expires header.
func (e *Engine) Register(server, user, password string, expires int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	addr, err := siptransport.ResolveServer(server)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	e.serverAddr = addr
	e.domain = serverHost(server, addr)
	e.user = user
	e.password = password
	e.registration = dialogstate.NewRegistration()

	if err := e.csm.Fire(context.Background(), dialogstate.EventRegister); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	reqURI := sipmsg.URI{Scheme: "sip", Host: e.domain}
	localAddr := sipmsg.Address{
		URI: sipmsg.URI{Scheme: "sip", User: user, Host: e.domain},
		Tag: e.registration.LocalTag,
	}
	toAddr := sipmsg.Address{URI: localAddr.URI}
	contact := sipmsg.Address{URI: sipmsg.ContactURI(user, e.transport.LocalIP(), e.transport.LocalPort())}

	build := func(cseq uint32, extra sipmsg.HeaderList) *sipmsg.Request {
		return sipmsg.NewRequest(sipmsg.RequestParams{
			Method:       "REGISTER",
			RequestURI:   reqURI,
			LocalHost:    e.transport.LocalIP(),
			LocalPort:    e.transport.LocalPort(),
			Branch:       sipmsg.NewBranch(),
			From:         localAddr,
			To:           toAddr,
			CallID:       e.registration.CallID,
			CSeq:         sipmsg.CSeq{Number: cseq, Method: "REGISTER"},
			Contact:      &contact,
			ExtraHeaders: extra.Set("Expires", fmt.Sprintf("%d", expires)),
		})
	}

	cseq := e.registration.NextCSeq()
	req := build(cseq, nil)
	resp, err := e.sendAndAwaitFinal(req, ResponseTimeout)
	if err != nil {
		return err
	}

	if resp.IsChallenge() {
		credHeader, headerName, authErr := authenticate(resp, "REGISTER", reqURI.String(), user, password)
		if authErr != nil {
			return authErr
		}
		if raw, _, ok := challengeHeader(resp); ok {
			if chal, err := digestauth.ParseChallenge(raw); err == nil {
				e.registration.CacheChallenge(chal.Realm, chal.Nonce)
			}
		}
		cseq2 := e.registration.NextCSeq()
		req2 := build(cseq2, sipmsg.HeaderList{{Name: headerName, Value: credHeader}})
		resp2, err2 := e.sendAndAwaitFinal(req2, ResponseTimeout)
		if err2 != nil {
			return err2
		}
		if resp2.IsChallenge() {
			return fmt.Errorf("%w: second challenge after authenticated retry", ErrAuthFailed)
		}
		resp = resp2
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("%w: REGISTER failed with status %d %s", ErrProtocol, resp.StatusCode, resp.ReasonPhrase)
	}

	e.registration.Expires = expires
	if err := e.csm.Fire(context.Background(), dialogstate.EventRegistered); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// Unregister performs REGISTER with Expires: 0 against the
// previously-registered server.
func (e *Engine) Unregister() error {
	e.mu.Lock()
	server := e.serverAddr
	user := e.user
	password := e.password
	e.mu.Unlock()
	if server == nil {
		return fmt.Errorf("%w: not registered", ErrProtocol)
	}
	return e.Register(server.String(), user, password, 0)
}

// serverHost extracts the hostname part of a "host" or "host:port"
// string, falling back to the resolved IP when server carries no
// separable hostname (e.g. it was already an IP:port).
func serverHost(server string, addr *net.UDPAddr) string {
	if host, _, err := net.SplitHostPort(server); err == nil {
		return host
	}
	if server != "" {
		return server
	}
	return addr.IP.String()
}
