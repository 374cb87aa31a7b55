// Package rtpmedia provides the RTP packet structure and wire
// serialization used by the media session, built on top of
// github.com/pion/rtp's header and packet marshaling.
package rtpmedia

import (
	"fmt"

	"github.com/pion/rtp"
)

// HeaderSize is the fixed RTP header length with no CSRC list or
// extension, per RFC 3550.
const HeaderSize = 12

// Packet is the wire-level unit the media session sends and receives.
// It mirrors RFC 3550's fixed header fields plus payload.
type Packet struct {
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	Payload        []byte
}

// Marshal serializes p into wire bytes using pion/rtp's packet codec.
func (p *Packet) Marshal() ([]byte, error) {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.SequenceNumber,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Payload,
	}
	return pkt.Marshal()
}

// Unmarshal parses wire bytes into p. It rejects anything shorter than
// the fixed header or not carrying RTP version 2; any CSRC list or
// extension header present is skipped by the underlying decoder and
// its fields are not preserved on Packet since this session design
// does not use them.
func Unmarshal(buf []byte) (*Packet, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("rtpmedia: packet too short: %d bytes", len(buf))
	}
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("rtpmedia: unmarshal: %w", err)
	}
	if pkt.Header.Version != 2 {
		return nil, fmt.Errorf("rtpmedia: unsupported RTP version %d", pkt.Header.Version)
	}
	return &Packet{
		Marker:         pkt.Header.Marker,
		PayloadType:    pkt.Header.PayloadType,
		SequenceNumber: pkt.Header.SequenceNumber,
		Timestamp:      pkt.Header.Timestamp,
		SSRC:           pkt.Header.SSRC,
		Payload:        pkt.Payload,
	}, nil
}
