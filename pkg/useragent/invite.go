package useragent

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/arzzra/dialtone/pkg/dialogstate"
	"github.com/arzzra/dialtone/pkg/sdpmedia"
	"github.com/arzzra/dialtone/pkg/sipmsg"
)

// sdpSessionID derives a stable numeric SDP o= session id from the
// dialog's Call-ID, so the value is deterministic for a given call
// without needing another source of randomness.
func sdpSessionID(callID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(callID))
	return h.Sum64()
}

// Invite places an outbound call to number, advertising localRTPPort
// in the SDP offer. On success it sends the ACK and returns the
// parsed remote SDP so the caller can start the RTP session.
func (e *Engine) Invite(number string, localRTPPort int) (*InviteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.registration == nil || e.serverAddr == nil {
		return nil, fmt.Errorf("%w: not registered", ErrProtocol)
	}

	dialog := dialogstate.NewDialog()
	e.dialog = dialog

	if err := e.csm.Fire(context.Background(), dialogstate.EventDial); err != nil {
		e.dialog = nil
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	reqURI := sipmsg.RequestURIFromNumber(number, e.domain)
	dialog.RemoteURI = reqURI.String()
	localAddr := sipmsg.Address{
		URI: sipmsg.URI{Scheme: "sip", User: e.user, Host: e.domain},
		Tag: dialog.LocalTag,
	}
	toAddr := sipmsg.Address{URI: reqURI}
	contact := sipmsg.Address{URI: sipmsg.ContactURI(e.user, e.transport.LocalIP(), e.transport.LocalPort())}

	inviteCSeq := dialog.NextCSeq()

	offerBody, err := sdpmedia.Generate(sdpmedia.Offer{
		SessionID: sdpSessionID(dialog.CallID),
		LocalIP:   e.transport.LocalIP(),
		RTPPort:   localRTPPort,
	})
	if err != nil {
		e.dialog = nil
		return nil, fmt.Errorf("%w: building SDP offer: %v", ErrMedia, err)
	}

	build := func(extra sipmsg.HeaderList) *sipmsg.Request {
		return sipmsg.NewRequest(sipmsg.RequestParams{
			Method:       "INVITE",
			RequestURI:   reqURI,
			LocalHost:    e.transport.LocalIP(),
			LocalPort:    e.transport.LocalPort(),
			Branch:       sipmsg.NewBranch(),
			From:         localAddr,
			To:           toAddr,
			CallID:       dialog.CallID,
			CSeq:         sipmsg.CSeq{Number: inviteCSeq, Method: "INVITE"},
			Contact:      &contact,
			ExtraHeaders: extra,
			Body:         offerBody,
			ContentType:  "application/sdp",
		})
	}

	req := build(nil)
	resp, err := e.sendAndAwaitFinal(req, ResponseTimeout)
	if err != nil {
		e.terminateDialog()
		return nil, err
	}

	if resp.IsChallenge() {
		credHeader, headerName, authErr := authenticate(resp, "INVITE", reqURI.String(), e.user, e.password)
		if authErr != nil {
			e.terminateDialog()
			return nil, authErr
		}
		// A challenged re-INVITE is a new request within the same
		// dialog: CSeq increments, branch is fresh, Call-ID/tag hold.
		inviteCSeq = dialog.NextCSeq()
		req2 := build(sipmsg.HeaderList{{Name: headerName, Value: credHeader}})
		resp2, err2 := e.sendAndAwaitFinal(req2, ResponseTimeout)
		if err2 != nil {
			e.terminateDialog()
			return nil, err2
		}
		if resp2.IsChallenge() {
			e.terminateDialog()
			return nil, fmt.Errorf("%w: second challenge after authenticated retry", ErrAuthFailed)
		}
		resp = resp2
	}

	dialog.LearnRemoteTag(resp.To.Tag)
	if resp.Contact != nil {
		dialog.RemoteTarget = resp.Contact.URI.String()
	}

	if !resp.IsSuccess() {
		e.terminateDialog()
		return nil, &CallRejectedError{Status: resp.StatusCode, Reason: resp.ReasonPhrase}
	}

	// ACK the 2xx: same CSeq number as the INVITE, fresh branch, To
	// carries the learned remote tag, zero-length body. Sent as an
	// independent transaction — no response is awaited.
	ack := sipmsg.NewRequest(sipmsg.RequestParams{
		Method:     "ACK",
		RequestURI: reqURI,
		LocalHost:  e.transport.LocalIP(),
		LocalPort:  e.transport.LocalPort(),
		Branch:     sipmsg.NewBranch(),
		From:       localAddr,
		To:         sipmsg.Address{URI: toAddr.URI, Tag: dialog.RemoteTag},
		CallID:     dialog.CallID,
		CSeq:       sipmsg.CSeq{Number: dialogstate.AckCSeq(inviteCSeq), Method: "ACK"},
	})
	if err := e.transport.Send(ack.Marshal(), e.serverAddr); err != nil {
		e.terminateDialog()
		return nil, fmt.Errorf("%w: sending ACK: %v", ErrTransport, err)
	}

	answer, err := sdpmedia.Parse(resp.Body)
	if err != nil {
		e.terminateDialog()
		return nil, fmt.Errorf("%w: parsing remote SDP: %v", ErrMedia, err)
	}

	if err := e.csm.Fire(context.Background(), dialogstate.EventAnswer); err != nil {
		e.terminateDialog()
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	return &InviteResult{
		RemoteIP:    answer.RemoteIP,
		RemotePort:  answer.RemotePort,
		PayloadType: answer.PayloadType,
	}, nil
}

// terminateDialog drops the active dialog and fires the TERMINATED
// transition; callers invoke it on any failure path after a dialog was
// created, and from Bye/Hangup.
func (e *Engine) terminateDialog() {
	e.dialog = nil
	if err := e.csm.Fire(context.Background(), dialogstate.EventTerminate); err != nil {
		e.logger.Warn().Err(err).Msg("firing terminate transition")
	}
}
