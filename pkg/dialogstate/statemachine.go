package dialogstate

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

// Call state names, matching the control-surface event vocabulary
// exactly (SPEC_FULL.md §6).
const (
	StateUninitialized = "UNINITIALIZED"
	StateInitialized   = "INITIALIZED"
	StateRegistering   = "REGISTERING"
	StateRegistered    = "REGISTERED"
	StateOutgoing      = "OUTGOING"
	StateActive        = "ACTIVE"
	StateTerminated    = "TERMINATED"
)

// Call events drive transitions between the states above.
const (
	EventInitialize = "initialize"
	EventRegister   = "register"
	EventRegistered = "registered"
	EventDial       = "dial"
	EventAnswer     = "answer"
	EventTerminate  = "terminate"
	EventReset      = "reset"
)

// CallStateMachine wraps a looplab/fsm.FSM configured with this
// softphone's seven call states, publishing every transition to a
// caller-supplied observer.
type CallStateMachine struct {
	mu       sync.Mutex
	fsm      *fsm.FSM
	onChange func(state string)
}

// NewCallStateMachine builds the state machine starting at
// UNINITIALIZED. onChange, if non-nil, is invoked after every
// transition with the new state name.
func NewCallStateMachine(onChange func(state string)) *CallStateMachine {
	csm := &CallStateMachine{onChange: onChange}

	csm.fsm = fsm.NewFSM(
		StateUninitialized,
		fsm.Events{
			{Name: EventInitialize, Src: []string{StateUninitialized, StateTerminated}, Dst: StateInitialized},
			{Name: EventRegister, Src: []string{StateInitialized, StateRegistered, StateTerminated}, Dst: StateRegistering},
			{Name: EventRegistered, Src: []string{StateRegistering}, Dst: StateRegistered},
			// TERMINATED is included here, not just REGISTERED: the
			// registration persists across calls (SPEC_FULL.md §9's
			// single-account/single-call model), so once one call ends
			// — hangup or a rejected INVITE — the account is still
			// registered and ready to place the next one from
			// TERMINATED without an explicit EventReset in between.
			{Name: EventDial, Src: []string{StateRegistered, StateTerminated}, Dst: StateOutgoing},
			{Name: EventAnswer, Src: []string{StateOutgoing}, Dst: StateActive},
			{Name: EventTerminate, Src: []string{
				StateInitialized, StateRegistering, StateRegistered, StateOutgoing, StateActive,
			}, Dst: StateTerminated},
			{Name: EventReset, Src: []string{StateTerminated}, Dst: StateRegistered},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				csm.notify(e.Dst)
			},
		},
	)

	return csm
}

func (csm *CallStateMachine) notify(state string) {
	if csm.onChange != nil {
		csm.onChange(state)
	}
}

// Fire drives the named event. Returns an error if the event is not
// valid from the current state (e.g. dialing while not registered).
func (csm *CallStateMachine) Fire(ctx context.Context, event string) error {
	csm.mu.Lock()
	defer csm.mu.Unlock()
	return csm.fsm.Event(ctx, event)
}

// Current returns the current state name.
func (csm *CallStateMachine) Current() string {
	csm.mu.Lock()
	defer csm.mu.Unlock()
	return csm.fsm.Current()
}

// Is reports whether the machine is currently in state.
func (csm *CallStateMachine) Is(state string) bool {
	csm.mu.Lock()
	defer csm.mu.Unlock()
	return csm.fsm.Is(state)
}
