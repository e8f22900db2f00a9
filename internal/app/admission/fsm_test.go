package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostGoesStraightToActive(t *testing.T) {
	f := NewFSM()
	require.Equal(t, Connecting, f.State())

	require.NoError(t, f.HandleHostStatus(true, false))
	assert.Equal(t, Active, f.State())
}

func TestPreAdmittedParticipantSkipsWaitingRoom(t *testing.T) {
	f := NewFSM()
	require.NoError(t, f.HandleHostStatus(false, true))
	assert.Equal(t, Active, f.State())
}

func TestRegularParticipantWaitsThenJoins(t *testing.T) {
	f := NewFSM()
	var waited, active bool
	f.OnWaiting(func() { waited = true })
	f.OnActive(func() { active = true })

	require.NoError(t, f.HandleHostStatus(false, false))
	assert.Equal(t, WaitingRoom, f.State())
	assert.True(t, waited)
	assert.False(t, active)

	require.NoError(t, f.HandleAdmitted())
	assert.Equal(t, Active, f.State())
	assert.True(t, active)
}

func TestAdmittedBeforeHostStatusIsIgnored(t *testing.T) {
	f := NewFSM()
	require.NoError(t, f.HandleAdmitted())
	assert.Equal(t, Connecting, f.State(), "active is only reachable through connecting")
}

func TestRejectedIsTerminal(t *testing.T) {
	f := NewFSM()
	var gotKind RejectKind
	var gotReason string
	f.OnRejected(func(kind RejectKind, reason string) {
		gotKind = kind
		gotReason = reason
	})

	require.NoError(t, f.HandleHostStatus(false, false))
	require.NoError(t, f.HandleRejected(RejectByPolicy, "reputation restricted"))
	assert.Equal(t, Rejected, f.State())
	assert.Equal(t, RejectByPolicy, gotKind)
	assert.Equal(t, "reputation restricted", gotReason)

	assert.ErrorIs(t, f.HandleAdmitted(), ErrTerminal)
	assert.ErrorIs(t, f.HandleHostStatus(true, true), ErrTerminal)
	assert.Equal(t, Rejected, f.State())
}

func TestDuplicateRejectionIsQuiet(t *testing.T) {
	f := NewFSM()
	calls := 0
	f.OnRejected(func(RejectKind, string) { calls++ })

	require.NoError(t, f.HandleRejected(RejectByHost, "no"))
	require.NoError(t, f.HandleRejected(RejectByHost, "no"))
	assert.Equal(t, 1, calls)
}

func TestHostStatusAfterActiveIsNoop(t *testing.T) {
	f := NewFSM()
	require.NoError(t, f.HandleHostStatus(true, false))
	require.NoError(t, f.HandleHostStatus(false, false), "late duplicate must not demote")
	assert.Equal(t, Active, f.State())
}
