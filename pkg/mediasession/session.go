// Package mediasession owns the RTP socket and the send/receive
// goroutines that move audio between the local capture/playback
// streams and the remote endpoint of an active call, per RFC 3550.
//
// Grounded directly on the teacher's pkg/rtp.RTPSession: atomic
// sequence/timestamp counters, context.Context-scoped cancellation,
// and atomic.CompareAndSwapInt32-guarded Start/Stop, generalized here
// to drive the resampler/codec pipeline and the bounded audio channels
// instead of the teacher's raw packet callbacks.
package mediasession

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/arzzra/dialtone/pkg/codec"
	"github.com/arzzra/dialtone/pkg/resampler"
	"github.com/arzzra/dialtone/pkg/rtpmedia"
)

// ErrNotActive is returned by operations that require a running
// session.
var ErrNotActive = errors.New("mediasession: not active")

// samplesPerPacket is 20ms of audio at the RTP clock rate (8kHz for
// G.711), i.e. 160 samples per RFC 3551.
const samplesPerPacket = 160

const rtpClockRate = 8000

// CaptureSource is the subset of *audio.InputStream the send loop
// needs; an interface so tests can substitute a fake source instead of
// a real capture device.
type CaptureSource interface {
	Frames() <-chan []int16
	SampleRate() uint32
}

// PlaybackSink is the subset of *audio.OutputStream the receive loop
// needs.
type PlaybackSink interface {
	Push(frame []int16)
	SampleRate() uint32
}

// Config describes the negotiated media parameters the Dialog Engine
// hands off once an INVITE completes.
type Config struct {
	LocalPort   int
	RemoteIP    string
	RemotePort  int
	PayloadType codec.PayloadType
	Capture     CaptureSource
	Playback    PlaybackSink
}

// Session owns the RTP socket for one active call: a send goroutine
// pulling from the capture stream and a receive goroutine pushing into
// the playback stream, both stopped together by Stop.
type Session struct {
	conn       *net.UDPConn
	remoteAddr *net.UDPAddr

	payloadType codec.PayloadType
	ssrc        uint32

	sequenceNumber uint32 // atomic
	timestamp      uint32 // atomic

	packetsSent     uint64 // atomic
	packetsReceived uint64 // atomic
	packetsDropped  uint64 // atomic

	capture  CaptureSource
	playback PlaybackSink

	sendResampler *resampler.Resampler
	recvResampler *resampler.Resampler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active int32 // atomic

	logger zerolog.Logger
}

// New binds the RTP socket on cfg.LocalPort and prepares the session;
// the send/receive goroutines are started by Start.
func New(cfg Config, logger zerolog.Logger) (*Session, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.LocalPort})
	if err != nil {
		return nil, fmt.Errorf("mediasession: binding RTP socket: %w", err)
	}
	remoteAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.RemoteIP, cfg.RemotePort))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mediasession: resolving remote endpoint: %w", err)
	}

	ssrc, err := randomUint32()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mediasession: generating SSRC: %w", err)
	}
	initSeq, err := randomUint16()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mediasession: generating sequence number: %w", err)
	}
	initTS, err := randomUint32()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mediasession: generating timestamp: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Capture/Playback are nil in tests that only exercise sendChunk
	// directly; guard rather than fault on their SampleRate() methods.
	var captureRate, playbackRate int
	if cfg.Capture != nil {
		captureRate = int(cfg.Capture.SampleRate())
	}
	if cfg.Playback != nil {
		playbackRate = int(cfg.Playback.SampleRate())
	}

	return &Session{
		conn:           conn,
		remoteAddr:     remoteAddr,
		payloadType:    cfg.PayloadType,
		ssrc:           ssrc,
		sequenceNumber: uint32(initSeq),
		timestamp:      initTS,
		capture:        cfg.Capture,
		playback:       cfg.Playback,
		sendResampler:  resampler.New(captureRate, rtpClockRate),
		recvResampler:  resampler.New(rtpClockRate, playbackRate),
		ctx:            ctx,
		cancel:         cancel,
		logger:         logger.With().Str("component", "mediasession").Logger(),
	}, nil
}

// Start launches the send and receive goroutines.
func (s *Session) Start() error {
	if !atomic.CompareAndSwapInt32(&s.active, 0, 1) {
		return fmt.Errorf("mediasession: already started")
	}
	s.wg.Add(2)
	go s.sendLoop()
	go s.receiveLoop()
	return nil
}

// Stop cancels both loops, waits for them to exit, and closes the
// socket. Safe to call more than once.
func (s *Session) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.active, 1, 0) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	return s.conn.Close()
}

// sendLoop pulls capture frames, resamples to 8kHz, accumulates 20ms
// of samples, encodes, and transmits one RTP packet per accumulated
// buffer, per §4.9.
func (s *Session) sendLoop() {
	defer s.wg.Done()

	var pending []int16
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame, ok := <-s.capture.Frames():
			if !ok {
				return
			}
			pending = append(pending, s.sendResampler.Process(frame)...)
			for len(pending) >= samplesPerPacket {
				chunk := pending[:samplesPerPacket]
				pending = pending[samplesPerPacket:]
				if err := s.sendChunk(chunk); err != nil {
					s.logger.Warn().Err(err).Msg("dropping outbound RTP frame")
				}
			}
		}
	}
}

func (s *Session) sendChunk(samples []int16) error {
	payload := codec.Encode(s.payloadType, samples)

	pkt := &rtpmedia.Packet{
		PayloadType:    uint8(s.payloadType),
		SequenceNumber: uint16(atomic.AddUint32(&s.sequenceNumber, 1) - 1),
		Timestamp:      atomic.AddUint32(&s.timestamp, samplesPerPacket) - samplesPerPacket,
		SSRC:           s.ssrc,
		Payload:        payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("marshaling RTP packet: %w", err)
	}
	if _, err := s.conn.WriteToUDP(raw, s.remoteAddr); err != nil {
		return fmt.Errorf("sending RTP packet: %w", err)
	}
	atomic.AddUint64(&s.packetsSent, 1)
	return nil
}

// receiveLoop blocks on the socket, discards malformed packets and any
// not from the expected remote endpoint, decodes the rest, and pushes
// resampled frames to the playback stream. No jitter buffering, no
// reordering, no packet-loss concealment — an acknowledged limitation.
func (s *Session) receiveLoop() {
	defer s.wg.Done()

	buf := make([]byte, 1500)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.conn.SetReadDeadline(readDeadline()); err != nil {
			s.logger.Warn().Err(err).Msg("setting RTP read deadline")
		}
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			continue // timeout or transient error: re-check cancellation
		}
		if !from.IP.Equal(s.remoteAddr.IP) || from.Port != s.remoteAddr.Port {
			atomic.AddUint64(&s.packetsDropped, 1)
			continue
		}

		pkt, err := rtpmedia.Unmarshal(buf[:n])
		if err != nil {
			atomic.AddUint64(&s.packetsDropped, 1)
			s.logger.Debug().Err(err).Msg("dropping malformed RTP packet")
			continue
		}

		samples := codec.Decode(codec.PayloadType(pkt.PayloadType), pkt.Payload)

		atomic.AddUint64(&s.packetsReceived, 1)
		out := s.recvResampler.Process(samples)
		if len(out) > 0 {
			s.playback.Push(out)
		}
	}
}

// Stats returns a snapshot of the session's packet counters.
func (s *Session) Stats() (sent, received, dropped uint64) {
	return atomic.LoadUint64(&s.packetsSent),
		atomic.LoadUint64(&s.packetsReceived),
		atomic.LoadUint64(&s.packetsDropped)
}

// rtpReadTimeout bounds each receive call so the loop re-checks ctx
// cancellation promptly after Stop.
const rtpReadTimeout = 200 * time.Millisecond

func readDeadline() time.Time {
	return time.Now().Add(rtpReadTimeout)
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func randomUint16() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
