package useragent

import (
	"fmt"

	"github.com/arzzra/dialtone/pkg/sipmsg"
)

// Bye sends BYE on the active dialog and tears it down. Per
// SPEC_FULL.md §4.3, any final response (2xx or otherwise) is treated
// as success; only transport/timeout failures are returned as errors.
func (e *Engine) Bye() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dialog := e.dialog
	if dialog == nil {
		return fmt.Errorf("%w: no active call", ErrProtocol)
	}

	reqURI, err := sipmsg.ParseURI(dialog.RemoteURI)
	if err != nil || dialog.RemoteURI == "" {
		// Invite always sets RemoteURI; if it is empty or unparsable,
		// fall back to the remote target (the 2xx's Contact), then to
		// the registrar domain.
		reqURI, err = sipmsg.ParseURI(dialog.RemoteTarget)
		if err != nil {
			reqURI = sipmsg.URI{Scheme: "sip", Host: e.domain}
		}
	}

	localAddr := sipmsg.Address{
		URI: sipmsg.URI{Scheme: "sip", User: e.user, Host: e.domain},
		Tag: dialog.LocalTag,
	}
	remoteAddr := sipmsg.Address{URI: reqURI, Tag: dialog.RemoteTag}

	req := sipmsg.NewRequest(sipmsg.RequestParams{
		Method:     "BYE",
		RequestURI: reqURI,
		LocalHost:  e.transport.LocalIP(),
		LocalPort:  e.transport.LocalPort(),
		Branch:     sipmsg.NewBranch(),
		From:       localAddr,
		To:         remoteAddr,
		CallID:     dialog.CallID,
		CSeq:       sipmsg.CSeq{Number: dialog.NextCSeq(), Method: "BYE"},
	})

	_, err = e.sendAndAwaitFinal(req, ResponseTimeout)
	e.terminateDialog()
	if err != nil {
		return err
	}
	return nil
}

// Hangup is an alias for Bye matching the control surface's command
// vocabulary (SPEC_FULL.md §6).
func (e *Engine) Hangup() error {
	return e.Bye()
}
