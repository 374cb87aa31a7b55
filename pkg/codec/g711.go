// Package codec provides G.711 mu-law and A-law conversion between
// 16-bit linear PCM and the 8-bit compressed wire format used by RTP
// payload types 0 and 8 (RFC 3551).
package codec

import "github.com/zaf/g711"

// PayloadType identifies which G.711 variant a session negotiated.
type PayloadType uint8

const (
	PayloadTypeULaw PayloadType = 0
	PayloadTypeALaw PayloadType = 8
)

func (pt PayloadType) String() string {
	switch pt {
	case PayloadTypeULaw:
		return "PCMU"
	case PayloadTypeALaw:
		return "PCMA"
	default:
		return "unknown"
	}
}

// EncodeULawBuffer converts linear PCM samples to mu-law bytes.
func EncodeULawBuffer(pcm []int16) []byte {
	return g711.EncodeUlaw(int16SliceToBytes(pcm))
}

// DecodeULawBuffer converts mu-law bytes back to linear PCM samples.
func DecodeULawBuffer(ulaw []byte) []int16 {
	return bytesToInt16Slice(g711.DecodeUlaw(ulaw))
}

// EncodeALawBuffer converts linear PCM samples to A-law bytes.
func EncodeALawBuffer(pcm []int16) []byte {
	return g711.EncodeAlaw(int16SliceToBytes(pcm))
}

// DecodeALawBuffer converts A-law bytes back to linear PCM samples.
func DecodeALawBuffer(alaw []byte) []int16 {
	return bytesToInt16Slice(g711.DecodeAlaw(alaw))
}

// Encode dispatches to the codec matching pt.
func Encode(pt PayloadType, pcm []int16) []byte {
	if pt == PayloadTypeALaw {
		return EncodeALawBuffer(pcm)
	}
	return EncodeULawBuffer(pcm)
}

// Decode dispatches to the codec matching pt.
func Decode(pt PayloadType, payload []byte) []int16 {
	if pt == PayloadTypeALaw {
		return DecodeALawBuffer(payload)
	}
	return DecodeULawBuffer(payload)
}

// EncodeULawSample encodes a single linear sample, for property tests
// that reason about one sample at a time.
func EncodeULawSample(s int16) byte {
	return EncodeULawBuffer([]int16{s})[0]
}

// DecodeULawSample decodes a single mu-law byte.
func DecodeULawSample(b byte) int16 {
	return DecodeULawBuffer([]byte{b})[0]
}

// EncodeALawSample encodes a single linear sample.
func EncodeALawSample(s int16) byte {
	return EncodeALawBuffer([]int16{s})[0]
}

// DecodeALawSample decodes a single A-law byte.
func DecodeALawSample(b byte) int16 {
	return DecodeALawBuffer([]byte{b})[0]
}

func int16SliceToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

func bytesToInt16Slice(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return out
}
