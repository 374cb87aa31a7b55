package dialogstate

import "github.com/google/uuid"

// Registration is the process-wide record of the single account this
// softphone registers as. One instance exists for the process
// lifetime (single-account assumption, SPEC_FULL.md §9).
type Registration struct {
	CallID   string
	LocalTag string
	CSeq     uint32
	Realm    string
	Nonce    string
	Expires  int
}

// NewRegistration starts a fresh registration identity.
func NewRegistration() *Registration {
	return &Registration{
		CallID:   uuid.NewString(),
		LocalTag: uuid.NewString(),
	}
}

// NextCSeq increments and returns the CSeq number for the next
// REGISTER request.
func (r *Registration) NextCSeq() uint32 {
	r.CSeq++
	return r.CSeq
}

// CacheChallenge remembers the realm/nonce of the most recent 401/407
// so a future refresh could reuse it (not required by this design
// since every authenticated retry uses a freshly received challenge,
// but kept for observability/debugging).
func (r *Registration) CacheChallenge(realm, nonce string) {
	r.Realm = realm
	r.Nonce = nonce
}
