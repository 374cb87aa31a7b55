package sipmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURIBasic(t *testing.T) {
	u, err := ParseURI("sip:alice@example.com:5060")
	require.NoError(t, err)
	assert.Equal(t, "sip", u.Scheme)
	assert.Equal(t, "alice", u.User)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, 5060, u.Port)
}

func TestParseURINoUserNoPort(t *testing.T) {
	u, err := ParseURI("sip:pbx.example.com")
	require.NoError(t, err)
	assert.Equal(t, "", u.User)
	assert.Equal(t, "pbx.example.com", u.Host)
	assert.Equal(t, 0, u.Port)
}

func TestURIStringRoundTrip(t *testing.T) {
	u := URI{Scheme: "sip", User: "bob", Host: "example.com", Port: 5080}
	assert.Equal(t, "sip:bob@example.com:5080", u.String())
}

func TestParseAddressWithDisplayNameAndTag(t *testing.T) {
	a, err := ParseAddress(`"Alice" <sip:alice@example.com>;tag=abc123`)
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.DisplayName)
	assert.Equal(t, "alice", a.URI.User)
	assert.Equal(t, "abc123", a.Tag)
}

func TestParseAddressWithoutBrackets(t *testing.T) {
	a, err := ParseAddress("sip:bob@example.com;tag=xyz")
	require.NoError(t, err)
	assert.Equal(t, "bob", a.URI.User)
	assert.Equal(t, "xyz", a.Tag)
}

func TestViaStringAndParse(t *testing.T) {
	v := Via{Host: "192.0.2.1", Port: 5060, Branch: "z9hG4bKabc"}
	s := v.String()
	assert.Equal(t, "SIP/2.0/UDP 192.0.2.1:5060;branch=z9hG4bKabc", s)

	parsed, err := ParseVia(s)
	require.NoError(t, err)
	// String renders an empty Protocol as UDP; ParseVia reports the
	// transport token it read.
	want := v
	want.Protocol = "UDP"
	assert.Equal(t, want, parsed)
}

func TestNewBranchHasMagicCookie(t *testing.T) {
	b := NewBranch()
	assert.True(t, strings.HasPrefix(b, BranchMagicCookie))
}

func TestRequestMarshalAndParseRoundTrip(t *testing.T) {
	req := NewRequest(RequestParams{
		Method:     "REGISTER",
		RequestURI: URI{Scheme: "sip", Host: "pbx.example.com"},
		LocalHost:  "198.51.100.9",
		LocalPort:  5060,
		Branch:     NewBranch(),
		From:       Address{URI: URI{Scheme: "sip", User: "alice", Host: "pbx.example.com"}, Tag: "localtag"},
		To:         Address{URI: URI{Scheme: "sip", User: "alice", Host: "pbx.example.com"}},
		CallID:     "abc-123",
		CSeq:       CSeq{Number: 1, Method: "REGISTER"},
	})

	raw := req.Marshal()
	assert.True(t, strings.HasPrefix(string(raw), "REGISTER sip:pbx.example.com SIP/2.0\r\n"))
	assert.Contains(t, string(raw), "Content-Length: 0\r\n")

	parsed, err := ParseRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, "REGISTER", parsed.Method)
	assert.Equal(t, "abc-123", parsed.CallID)
	assert.Equal(t, uint32(1), parsed.CSeq.Number)
	assert.Equal(t, "localtag", parsed.From.Tag)
}

func TestParseResponseProvisionalAndFinal(t *testing.T) {
	raw := strings.Join([]string{
		"SIP/2.0 180 Ringing",
		"Via: SIP/2.0/UDP 198.51.100.9:5060;branch=z9hG4bKabc",
		`From: <sip:alice@pbx.example.com>;tag=localtag`,
		`To: <sip:bob@pbx.example.com>;tag=remotetag`,
		"Call-ID: abc-123",
		"CSeq: 1 INVITE",
		"Content-Length: 0",
		"",
		"",
	}, "\r\n")

	resp, err := ParseResponse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 180, resp.StatusCode)
	assert.True(t, resp.IsProvisional())
	assert.False(t, resp.IsSuccess())
	assert.Equal(t, "remotetag", resp.To.Tag)
}

func TestParseResponseWithBody(t *testing.T) {
	body := "v=0\r\n"
	raw := strings.Join([]string{
		"SIP/2.0 200 OK",
		"Via: SIP/2.0/UDP 198.51.100.9:5060;branch=z9hG4bKabc",
		`From: <sip:alice@pbx.example.com>;tag=localtag`,
		`To: <sip:bob@pbx.example.com>;tag=remotetag`,
		"Call-ID: abc-123",
		"CSeq: 1 INVITE",
		"Content-Type: application/sdp",
		"Content-Length: " + itoa(len(body)),
		"",
		body,
	}, "\r\n")

	resp, err := ParseResponse([]byte(raw))
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, body, string(resp.Body))
	ct, ok := resp.Headers.Get("Content-Type")
	assert.True(t, ok)
	assert.Equal(t, "application/sdp", ct)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
