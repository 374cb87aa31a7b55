// Package sdpmedia generates and parses the minimal audio-only SDP
// bodies exchanged in INVITE/200 OK, built on pion/sdp/v3.
package sdpmedia

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

// Offer describes the local endpoint advertised in an outbound SDP
// body: the session id, our address, and our RTP port. The codec list
// is not part of Offer; Generate always advertises the same fixed set.
type Offer struct {
	SessionID uint64
	LocalIP   string
	RTPPort   int
}

// Answer is what Parse extracts from a remote SDP body: enough to
// start an RTP session towards the peer.
type Answer struct {
	RemoteIP   string
	RemotePort int
	PayloadType uint8 // 0 (PCMU) or 8 (PCMA)
}

// Generate builds the fixed audio offer body described for this
// softphone: PCMU, PCMA, and telephone-event, sendrecv.
func Generate(o Offer) ([]byte, error) {
	sd := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      o.SessionID,
			SessionVersion: o.SessionID,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: o.LocalIP,
		},
		SessionName: "-",
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: o.LocalIP},
		},
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
		MediaDescriptions: []*sdp.MediaDescription{
			{
				MediaName: sdp.MediaName{
					Media:   "audio",
					Port:    sdp.RangedPort{Value: o.RTPPort},
					Protos:  []string{"RTP", "AVP"},
					Formats: []string{"0", "8", "101"},
				},
				Attributes: []sdp.Attribute{
					{Key: "rtpmap", Value: "0 PCMU/8000"},
					{Key: "rtpmap", Value: "8 PCMA/8000"},
					{Key: "rtpmap", Value: "101 telephone-event/8000"},
					{Key: "sendrecv"},
				},
			},
		},
	}
	return sd.Marshal()
}

// Parse extracts the remote connection address, RTP port, and chosen
// payload type from a received SDP body. Unknown lines and attributes
// outside the audio media section are ignored. Defaults to PCMU (PT 0)
// when the offered format list is empty or ambiguous.
func Parse(body []byte) (Answer, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal(body); err != nil {
		return Answer{}, fmt.Errorf("sdpmedia: parse: %w", err)
	}

	var audio *sdp.MediaDescription
	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media == "audio" {
			audio = md
			break
		}
	}
	if audio == nil {
		return Answer{}, fmt.Errorf("sdpmedia: no audio media section")
	}

	ans := Answer{PayloadType: 0}

	if audio.ConnectionInformation != nil && audio.ConnectionInformation.Address != nil {
		ans.RemoteIP = audio.ConnectionInformation.Address.Address
	} else if sd.ConnectionInformation != nil && sd.ConnectionInformation.Address != nil {
		ans.RemoteIP = sd.ConnectionInformation.Address.Address
	}
	if ans.RemoteIP == "" {
		return Answer{}, fmt.Errorf("sdpmedia: no connection address")
	}

	ans.RemotePort = audio.MediaName.Port.Value

	if len(audio.MediaName.Formats) > 0 {
		if pt, err := strconv.Atoi(strings.TrimSpace(audio.MediaName.Formats[0])); err == nil {
			if pt == 0 || pt == 8 {
				ans.PayloadType = uint8(pt)
			}
		}
	}

	return ans, nil
}
