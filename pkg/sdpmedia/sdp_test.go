package sdpmedia

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateContainsExpectedLines(t *testing.T) {
	body, err := Generate(Offer{SessionID: 12345, LocalIP: "192.0.2.10", RTPPort: 40000})
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		"v=0",
		"c=IN IP4 192.0.2.10",
		"m=audio 40000 RTP/AVP 0 8 101",
		"a=rtpmap:0 PCMU/8000",
		"a=rtpmap:8 PCMA/8000",
		"a=rtpmap:101 telephone-event/8000",
		"a=sendrecv",
	} {
		assert.Contains(t, text, want)
	}
}

func TestParsePicksULawByDefault(t *testing.T) {
	body := strings.Join([]string{
		"v=0",
		"o=- 1 1 IN IP4 198.51.100.5",
		"s=-",
		"c=IN IP4 198.51.100.5",
		"t=0 0",
		"m=audio 30000 RTP/AVP 0 8",
		"a=rtpmap:0 PCMU/8000",
		"a=rtpmap:8 PCMA/8000",
		"",
	}, "\r\n")
	ans, err := Parse([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.5", ans.RemoteIP)
	assert.Equal(t, 30000, ans.RemotePort)
	assert.EqualValues(t, 0, ans.PayloadType)
}

func TestParsePicksALawWhenOffered(t *testing.T) {
	body := strings.Join([]string{
		"v=0",
		"o=- 1 1 IN IP4 198.51.100.5",
		"s=-",
		"c=IN IP4 198.51.100.5",
		"t=0 0",
		"m=audio 30000 RTP/AVP 8",
		"a=rtpmap:8 PCMA/8000",
		"",
	}, "\r\n")
	ans, err := Parse([]byte(body))
	require.NoError(t, err)
	assert.EqualValues(t, 8, ans.PayloadType)
}

func TestParseRoundTripsGenerate(t *testing.T) {
	body, err := Generate(Offer{SessionID: 1, LocalIP: "203.0.113.7", RTPPort: 12345})
	require.NoError(t, err)
	ans, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ans.RemoteIP)
	assert.Equal(t, 12345, ans.RemotePort)
	assert.EqualValues(t, 0, ans.PayloadType)
}
