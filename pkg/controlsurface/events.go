package controlsurface

// Event types published on the Surface's event stream, matching the
// vocabulary of SPEC_FULL.md §6 exactly.
const (
	EventTypeInitialized       = "initialized"
	EventTypeRegistrationState = "registration_state"
	EventTypeCallState         = "call_state"
)

// Event is the shape of everything the control surface publishes to
// the UI collaborator: a type tag plus whichever fields that type
// carries. Fields not relevant to a given Type are left at their zero
// value.
type Event struct {
	Type string `json:"type"`

	// Registered is set on EventTypeRegistrationState.
	Registered bool `json:"registered,omitempty"`

	// State is set on EventTypeCallState, one of the dialogstate.State*
	// values.
	State string `json:"state,omitempty"`

	// Reason carries a short machine-readable cause for a TERMINATED
	// call_state event (e.g. "call_rejected", "timeout", "media_error").
	Reason string `json:"reason,omitempty"`

	// Detail is a free-form human-readable elaboration, e.g. the status
	// code and phrase of a rejected INVITE.
	Detail string `json:"detail,omitempty"`
}

// eventChannelCapacity bounds the event stream; the control surface
// never blocks a command waiting for a slow UI consumer, matching the
// audio pipeline's own drop-oldest philosophy for real-time paths. The
// control surface's commands are not real-time, so here we drop the
// newest rather than corrupt ordering: a UI that falls this far behind
// has bigger problems than a missed event.
const eventChannelCapacity = 64

// publish enqueues ev without blocking, discarding it if the channel's
// consumer has fallen behind.
func (s *Surface) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn().Str("event_type", ev.Type).Msg("dropping event: UI event channel is full")
	}
}

// Events returns the read side of the event stream. There is exactly
// one consumer expected (the UI bridge collaborator); callers should
// not fan this out to multiple readers without their own buffering.
func (s *Surface) Events() <-chan Event {
	return s.events
}
