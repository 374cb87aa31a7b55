// Package controlsurface implements the flat command/event API the
// GUI collaborator drives the softphone core through (SPEC_FULL.md
// §4.11, §6): a command dispatcher in front of the Dialog Engine,
// Audio I/O, and Settings Store, publishing their outcomes as a single
// event stream and a small set of Prometheus counters/gauges.
package controlsurface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/arzzra/dialtone/pkg/audio"
	"github.com/arzzra/dialtone/pkg/codec"
	"github.com/arzzra/dialtone/pkg/dialogstate"
	"github.com/arzzra/dialtone/pkg/mediasession"
	"github.com/arzzra/dialtone/pkg/settings"
	"github.com/arzzra/dialtone/pkg/useragent"
)

// DefaultRegisterExpires is advertised on every REGISTER that does not
// specify its own value.
const DefaultRegisterExpires = 3600

// unregisterBound is the ~5s ceiling SPEC_FULL.md §5 puts on
// Unregister running synchronously during application shutdown.
const unregisterBound = 5 * time.Second

// ErrNotInitialized is returned by any command issued before Init.
var ErrNotInitialized = errors.New("controlsurface: not initialized")

// ErrNoActiveCall is returned by Hangup when there is nothing to hang
// up.
var ErrNoActiveCall = errors.New("controlsurface: no active call")

// Surface is the single process-wide command dispatcher: it owns the
// Dialog Engine, the audio streams for the current call (if any), and
// the active media session (at most one), per the singleton-owner
// model of SPEC_FULL.md §9.
type Surface struct {
	mu sync.Mutex

	logger  zerolog.Logger
	metrics *metrics
	events  chan Event

	engine *useragent.Engine

	capture  *audio.InputStream
	playback *audio.OutputStream
	media    *mediasession.Session

	registered bool
}

// New builds a Surface that is not yet initialized; call Init before
// issuing any other command. reg is the Prometheus registerer metrics
// are attached to — pass prometheus.DefaultRegisterer in production and
// a fresh prometheus.NewRegistry() in tests.
func New(logger zerolog.Logger, reg prometheus.Registerer) *Surface {
	return &Surface{
		logger:  logger.With().Str("component", "controlsurface").Logger(),
		metrics: newMetrics(reg),
		events:  make(chan Event, eventChannelCapacity),
	}
}

// Init acquires the SIP transport and local address, and wires the
// Dialog Engine's state-machine callback into the event stream.
func (s *Surface) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		return nil // already initialized; Init is idempotent
	}

	engine, err := useragent.New(s.logger, s.onCallStateChange)
	if err != nil {
		return fmt.Errorf("controlsurface: initializing SIP engine: %w", err)
	}
	s.engine = engine
	s.publish(Event{Type: EventTypeInitialized})
	s.logger.Info().Str("local_ip", engine.LocalIP()).Int("local_port", engine.LocalSIPPort()).Msg("initialized")
	return nil
}

// onCallStateChange is the Dialog Engine's state-machine callback; it
// republishes every transition as a call_state event, setting the
// active-call gauge and, on TERMINATED, clearing it.
func (s *Surface) onCallStateChange(state string) {
	s.publish(Event{Type: EventTypeCallState, State: state})
	if state == dialogstate.StateActive {
		s.metrics.activeCall.Set(1)
	} else if state == dialogstate.StateTerminated {
		s.metrics.activeCall.Set(0)
	}
}

// Register performs REGISTER, including Digest auth if challenged,
// and publishes the resulting registration_state event.
func (s *Surface) Register(server, user, password string) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return ErrNotInitialized
	}

	s.metrics.registrationAttempts.Inc()
	err := engine.Register(server, user, password, DefaultRegisterExpires)

	s.mu.Lock()
	s.registered = err == nil
	s.mu.Unlock()

	s.publish(Event{Type: EventTypeRegistrationState, Registered: err == nil})
	if err != nil {
		s.metrics.registrationFailures.Inc()
		s.metrics.registered.Set(0)
		s.logger.Warn().Err(err).Str("server", server).Msg("registration failed")
		return err
	}
	s.metrics.registered.Set(1)
	s.logger.Info().Str("server", server).Str("user", user).Msg("registered")
	return nil
}

// Unregister sends REGISTER with Expires: 0, bounded to ~5s so it can
// run synchronously during application shutdown.
func (s *Surface) Unregister() error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return ErrNotInitialized
	}

	done := make(chan error, 1)
	go func() { done <- engine.Unregister() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(unregisterBound):
		err = fmt.Errorf("controlsurface: unregister did not complete within %s", unregisterBound)
	}

	s.mu.Lock()
	s.registered = false
	s.mu.Unlock()
	s.metrics.registered.Set(0)
	s.publish(Event{Type: EventTypeRegistrationState, Registered: false})
	if err != nil {
		s.logger.Warn().Err(err).Msg("unregister failed")
	}
	return err
}

// Call places an outbound call to number: it opens the audio streams
// if not already open, negotiates SDP via the Dialog Engine, and
// starts a media session once the engine confirms the call is ACTIVE.
func (s *Surface) Call(number string) error {
	s.mu.Lock()
	engine := s.engine
	registered := s.registered
	s.mu.Unlock()
	if engine == nil {
		return ErrNotInitialized
	}
	if !registered {
		return fmt.Errorf("controlsurface: cannot call while not registered")
	}

	capture, playback, err := s.ensureAudioStreams()
	if err != nil {
		return fmt.Errorf("controlsurface: opening audio streams: %w", err)
	}

	rtpPort, err := pickRTPPort()
	if err != nil {
		return fmt.Errorf("controlsurface: allocating RTP port: %w", err)
	}

	result, err := engine.Invite(number, rtpPort)
	if err != nil {
		s.handleCallFailure(err)
		return err
	}

	mediaSession, err := mediasession.New(mediasession.Config{
		LocalPort:   rtpPort,
		RemoteIP:    result.RemoteIP,
		RemotePort:  result.RemotePort,
		PayloadType: codec.PayloadType(result.PayloadType),
		Capture:     capture,
		Playback:    playback,
	}, s.logger)
	if err != nil {
		_ = engine.Bye()
		s.publish(Event{Type: EventTypeCallState, State: dialogstate.StateTerminated, Reason: "media_error", Detail: err.Error()})
		s.metrics.callsTerminatedReason.WithLabelValues("media_error").Inc()
		return fmt.Errorf("controlsurface: starting media session: %w", err)
	}
	if err := mediaSession.Start(); err != nil {
		_ = engine.Bye()
		return fmt.Errorf("controlsurface: starting media session: %w", err)
	}

	s.mu.Lock()
	s.media = mediaSession
	s.mu.Unlock()

	s.metrics.callsPlaced.Inc()
	s.logger.Info().Str("number", number).Str("remote_ip", result.RemoteIP).Int("remote_port", result.RemotePort).Msg("call active")
	return nil
}

// handleCallFailure classifies err against the §7 taxonomy, publishes
// the corresponding TERMINATED event, and bumps the matching counter.
func (s *Surface) handleCallFailure(err error) {
	var rejected *useragent.CallRejectedError
	switch {
	case errors.As(err, &rejected):
		s.metrics.callsRejected.Inc()
		s.metrics.callsTerminatedReason.WithLabelValues("call_rejected").Inc()
		s.publish(Event{
			Type:   EventTypeCallState,
			State:  dialogstate.StateTerminated,
			Reason: "call_rejected",
			Detail: fmt.Sprintf("%d %s", rejected.Status, rejected.Reason),
		})
	case errors.Is(err, useragent.ErrTimeout):
		s.metrics.callsTerminatedReason.WithLabelValues("timeout").Inc()
		s.publish(Event{Type: EventTypeCallState, State: dialogstate.StateTerminated, Reason: "timeout"})
	case errors.Is(err, useragent.ErrAuthFailed):
		s.metrics.callsTerminatedReason.WithLabelValues("auth_failed").Inc()
		s.publish(Event{Type: EventTypeCallState, State: dialogstate.StateTerminated, Reason: "auth_failed"})
	case errors.Is(err, useragent.ErrMedia):
		s.metrics.callsTerminatedReason.WithLabelValues("media_error").Inc()
		s.publish(Event{Type: EventTypeCallState, State: dialogstate.StateTerminated, Reason: "media_error", Detail: err.Error()})
	default:
		s.metrics.callsTerminatedReason.WithLabelValues("protocol_error").Inc()
		s.publish(Event{Type: EventTypeCallState, State: dialogstate.StateTerminated, Reason: "protocol_error", Detail: err.Error()})
	}
	s.logger.Warn().Err(err).Msg("call setup failed")
}

// Hangup sends BYE on the active dialog and tears down the media
// session, stopping the audio streams.
func (s *Surface) Hangup() error {
	s.mu.Lock()
	engine := s.engine
	mediaSession := s.media
	s.media = nil
	capture, playback := s.capture, s.playback
	if mediaSession != nil {
		s.capture, s.playback = nil, nil
	}
	s.mu.Unlock()

	if engine == nil {
		return ErrNotInitialized
	}
	if mediaSession == nil {
		return ErrNoActiveCall
	}

	sent, received, dropped := mediaSession.Stats()
	s.metrics.observeRTPStats(sent, received, dropped)
	if err := mediaSession.Stop(); err != nil {
		s.logger.Warn().Err(err).Msg("stopping media session")
	}
	if capture != nil {
		if err := capture.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing capture stream")
		}
	}
	if playback != nil {
		if err := playback.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing playback stream")
		}
	}

	err := engine.Bye()
	s.metrics.callsTerminatedReason.WithLabelValues("hangup").Inc()
	if err != nil {
		s.logger.Warn().Err(err).Msg("BYE failed")
		return err
	}
	s.logger.Info().Msg("call terminated by local hangup")
	return nil
}

// ListAudioInputDevices enumerates capture device names.
func (s *Surface) ListAudioInputDevices() ([]string, error) {
	devices, err := audio.ListInputDevices()
	if err != nil {
		return nil, err
	}
	return deviceNames(devices), nil
}

// ListAudioOutputDevices enumerates playback device names.
func (s *Surface) ListAudioOutputDevices() ([]string, error) {
	devices, err := audio.ListOutputDevices()
	if err != nil {
		return nil, err
	}
	return deviceNames(devices), nil
}

func deviceNames(devices []audio.Device) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}

// TestMicrophone captures from device for about one second and
// returns a short diagnostic string the UI can show the user.
func (s *Surface) TestMicrophone(device string) (string, error) {
	result, err := audio.TestMicrophone(device)
	if err != nil {
		return "", err
	}
	if result.FrameCount == 0 {
		return "no audio captured: check device selection and OS permissions", nil
	}
	return fmt.Sprintf("captured %d frames, peak amplitude %d/32767", result.FrameCount, result.PeakAmplitude), nil
}

// ensureAudioStreams opens the default capture/playback streams if
// they are not already open; Hangup closes them when a call ends.
func (s *Surface) ensureAudioStreams() (*audio.InputStream, *audio.OutputStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		in, err := audio.InitInput("default")
		if err != nil {
			return nil, nil, err
		}
		s.capture = in
	}
	if s.playback == nil {
		out, err := audio.InitOutput("default")
		if err != nil {
			return nil, nil, err
		}
		s.playback = out
	}
	return s.capture, s.playback, nil
}

// pickRTPPort binds an ephemeral UDP socket to learn a free port, then
// releases it for the media session to rebind. A true reservation
// would require plumbing the bound socket itself through to
// mediasession.New; SPEC_FULL.md §4.9 only requires the advertised SDP
// port and the session's bound port to match, which this satisfies
// modulo the narrow window between Close and the session's own Listen.
func pickRTPPort() (int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("controlsurface: unexpected local address type %T", conn.LocalAddr())
	}
	return addr.Port, nil
}

// Shutdown unregisters (bounded) and releases every resource the
// surface owns: the active media session, the audio streams, and the
// SIP transport. Safe to call once at process exit.
func (s *Surface) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	registered := s.registered
	mediaSession := s.media
	s.media = nil
	capture := s.capture
	playback := s.playback
	engine := s.engine
	s.mu.Unlock()

	var errs []error

	if mediaSession != nil {
		if err := mediaSession.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if registered {
		if err := s.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}
	if capture != nil {
		if err := capture.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if playback != nil {
		if err := playback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if engine != nil {
		if err := engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	// The event stream is deliberately not closed: Unregister above may
	// still have a background goroutine racing its own timeout bound
	// (see Unregister), and a late publish on a closed channel would
	// panic. The process is exiting regardless; the channel is
	// reclaimed with the Surface.
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LoadSavedAccount reads the settings store and returns the server,
// user, and plaintext password to pre-fill a Register call, or a
// zero-value triple on first run.
func LoadSavedAccount() (server, user, password string, err error) {
	s, err := settings.Load()
	if err != nil {
		return "", "", "", err
	}
	return s.Server, s.User, settings.DeobfuscatePassword(s.PasswordObfuscated), nil
}

// SaveAccount persists server/user/password (obfuscated) to the
// settings store for next launch.
func SaveAccount(server, user, password string) error {
	return settings.Save(settings.Settings{
		Server:             server,
		User:               user,
		PasswordObfuscated: settings.ObfuscatePassword(password),
	})
}
