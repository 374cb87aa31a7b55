package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeULawRoundTripBounded(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 16000, -16000, 32000, -32000, 32767, -32768}
	for _, s := range samples {
		enc := EncodeULawSample(s)
		dec := DecodeULawSample(enc)
		diff := int(s) - int(dec)
		if diff < 0 {
			diff = -diff
		}
		// mu-law quantization error grows with magnitude; bound loosely
		// against the segment size at this amplitude.
		bound := quantizationBound(s)
		assert.LessOrEqualf(t, diff, bound, "sample %d decoded to %d (diff %d > bound %d)", s, dec, diff, bound)
	}
}

func TestEncodeDecodeALawRoundTripBounded(t *testing.T) {
	samples := []int16{0, 1, -1, 100, -100, 1000, -1000, 16000, -16000, 32000, -32000}
	for _, s := range samples {
		enc := EncodeALawSample(s)
		dec := DecodeALawSample(enc)
		diff := int(s) - int(dec)
		if diff < 0 {
			diff = -diff
		}
		bound := quantizationBound(s)
		assert.LessOrEqualf(t, diff, bound, "sample %d decoded to %d (diff %d > bound %d)", s, dec, diff, bound)
	}
}

func TestEncodeDecodeBufferRoundTrip(t *testing.T) {
	pcm := make([]int16, 160)
	for i := range pcm {
		pcm[i] = int16(i * 100)
	}
	encoded := EncodeULawBuffer(pcm)
	require.Len(t, encoded, 160)
	decoded := DecodeULawBuffer(encoded)
	require.Len(t, decoded, 160)
}

func TestPayloadTypeString(t *testing.T) {
	assert.Equal(t, "PCMU", PayloadTypeULaw.String())
	assert.Equal(t, "PCMA", PayloadTypeALaw.String())
}

// quantizationBound is a coarse, monotone-in-magnitude error bound for
// 8-bit-compressed G.711: the decode error never exceeds roughly 1/16
// of the sample magnitude plus a small fixed floor for near-zero values.
func quantizationBound(s int16) int {
	mag := int(s)
	if mag < 0 {
		mag = -mag
	}
	bound := mag/16 + 32
	return bound
}
