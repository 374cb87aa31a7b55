// Package dialogstate models the SIP dialog and registration records
// the transaction engine mutates, and drives the call state machine
// published to the control surface.
package dialogstate

import "github.com/google/uuid"

// Dialog identifies a SIP dialog created by an INVITE and confirmed by
// a 2xx response, per RFC 3261 §12. CallID and LocalTag are fixed at
// creation and never change; RemoteTag is learned from the first
// response carrying a To-tag.
type Dialog struct {
	CallID       string
	LocalTag     string
	RemoteTag    string
	LocalCSeq    uint32
	RemoteURI    string // request-URI for subsequent in-dialog requests
	RemoteTarget string // Contact learned from 200 OK, if present
}

// NewDialog starts a new dialog with a fresh Call-ID and local tag.
// LocalCSeq begins at 0; the first request built from it (the INVITE)
// advances it to 1 via NextCSeq.
func NewDialog() *Dialog {
	return &Dialog{
		CallID:   uuid.NewString(),
		LocalTag: uuid.NewString(),
	}
}

// NextCSeq increments and returns the CSeq number for a new request
// within this dialog (every request except the ACK of a 2xx INVITE,
// which reuses the INVITE's CSeq — see AckCSeq).
func (d *Dialog) NextCSeq() uint32 {
	d.LocalCSeq++
	return d.LocalCSeq
}

// AckCSeq returns the CSeq number the ACK for a 2xx response to
// INVITE i must use: the same number as i, never incremented.
func AckCSeq(inviteCSeq uint32) uint32 {
	return inviteCSeq
}

// LearnRemoteTag records the remote tag the first time it is seen.
// Subsequent calls are no-ops, preserving the invariant that the
// remote tag is immutable once learned.
func (d *Dialog) LearnRemoteTag(tag string) {
	if d.RemoteTag == "" && tag != "" {
		d.RemoteTag = tag
	}
}
