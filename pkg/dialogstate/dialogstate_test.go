package dialogstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDialogHasStableCallIDAndTag(t *testing.T) {
	d := NewDialog()
	callID := d.CallID
	tag := d.LocalTag
	d.NextCSeq()
	assert.Equal(t, callID, d.CallID)
	assert.Equal(t, tag, d.LocalTag)
}

func TestNextCSeqIncrements(t *testing.T) {
	d := NewDialog()
	assert.EqualValues(t, 1, d.NextCSeq())
	assert.EqualValues(t, 2, d.NextCSeq())
	assert.EqualValues(t, 3, d.NextCSeq())
}

func TestAckCSeqReusesInviteCSeq(t *testing.T) {
	d := NewDialog()
	inviteCSeq := d.NextCSeq()
	assert.Equal(t, inviteCSeq, AckCSeq(inviteCSeq))
}

func TestLearnRemoteTagIsImmutableOnceSet(t *testing.T) {
	d := NewDialog()
	d.LearnRemoteTag("first")
	d.LearnRemoteTag("second")
	assert.Equal(t, "first", d.RemoteTag)
}

func TestCallStateMachineHappyPath(t *testing.T) {
	var seen []string
	csm := NewCallStateMachine(func(s string) { seen = append(seen, s) })

	ctx := context.Background()
	require.NoError(t, csm.Fire(ctx, EventInitialize))
	require.NoError(t, csm.Fire(ctx, EventRegister))
	require.NoError(t, csm.Fire(ctx, EventRegistered))
	require.NoError(t, csm.Fire(ctx, EventDial))
	require.NoError(t, csm.Fire(ctx, EventAnswer))

	assert.Equal(t, StateActive, csm.Current())
	assert.Equal(t, []string{
		StateInitialized, StateRegistering, StateRegistered, StateOutgoing, StateActive,
	}, seen)
}

func TestCallStateMachineRejectsInvalidTransition(t *testing.T) {
	csm := NewCallStateMachine(nil)
	err := csm.Fire(context.Background(), EventDial)
	assert.Error(t, err)
	assert.Equal(t, StateUninitialized, csm.Current())
}

func TestCallStateMachineTerminateFromAnyActiveState(t *testing.T) {
	csm := NewCallStateMachine(nil)
	ctx := context.Background()
	require.NoError(t, csm.Fire(ctx, EventInitialize))
	require.NoError(t, csm.Fire(ctx, EventTerminate))
	assert.Equal(t, StateTerminated, csm.Current())
}
