package rtpmedia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p := &Packet{
		PayloadType:    0,
		SequenceNumber: 4242,
		Timestamp:      160000,
		SSRC:           0xdeadbeef,
		Payload:        make([]byte, 160),
	}
	for i := range p.Payload {
		p.Payload[i] = byte(i)
	}

	raw, err := p.Marshal()
	require.NoError(t, err)
	assert.Equal(t, HeaderSize+160, len(raw))

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, p.PayloadType, got.PayloadType)
	assert.Equal(t, p.SequenceNumber, got.SequenceNumber)
	assert.Equal(t, p.Timestamp, got.Timestamp)
	assert.Equal(t, p.SSRC, got.SSRC)
	assert.Equal(t, p.Payload, got.Payload)

	// Re-serializing the parsed packet must reproduce the same bytes
	// for a header with no CSRC list or extension.
	raw2, err := got.Marshal()
	require.NoError(t, err)
	assert.Equal(t, raw, raw2)
}

func TestUnmarshalRejectsShortPacket(t *testing.T) {
	_, err := Unmarshal(make([]byte, 11))
	assert.Error(t, err)
}

func TestUnmarshalRejectsBadVersion(t *testing.T) {
	raw := make([]byte, 12)
	raw[0] = 0x00 // version bits 00, not 2
	_, err := Unmarshal(raw)
	assert.Error(t, err)
}

func TestSequenceAndTimestampContinuity(t *testing.T) {
	base := &Packet{SequenceNumber: 0xFFFE, Timestamp: 1000}
	next := &Packet{SequenceNumber: base.SequenceNumber + 1, Timestamp: base.Timestamp + 160}
	assert.EqualValues(t, 0xFFFF, next.SequenceNumber)

	wrapped := &Packet{SequenceNumber: next.SequenceNumber + 1}
	assert.EqualValues(t, 0, wrapped.SequenceNumber)
}
