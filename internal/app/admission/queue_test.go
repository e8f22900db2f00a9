package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/domain"
)

func waiting(ids ...domain.PeerID) []domain.WaitingParticipant {
	out := make([]domain.WaitingParticipant, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.WaitingParticipant{PeerID: id, DisplayName: string(id)})
	}
	return out
}

func TestQueueKeepsEntryUntilConfirmed(t *testing.T) {
	q := NewWaitQueue()
	q.Sync(waiting("A", "B"))

	require.True(t, q.MarkDecided("A"))
	// The decision is in flight; the entry must survive until a roster
	// update confirms it, or a slow relay turns one click into two admits.
	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, domain.PeerID("A"), snap[0].PeerID)

	q.Confirm("A")
	snap = q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, domain.PeerID("B"), snap[0].PeerID)
}

func TestQueueRejectsDoubleDecision(t *testing.T) {
	q := NewWaitQueue()
	q.Sync(waiting("A"))

	assert.True(t, q.MarkDecided("A"))
	assert.False(t, q.MarkDecided("A"), "second click must not produce a second command")
}

func TestQueueDecisionForUnknownEntry(t *testing.T) {
	q := NewWaitQueue()
	assert.False(t, q.MarkDecided("ghost"))
}

func TestQueueSyncReplacesAndDeduplicates(t *testing.T) {
	q := NewWaitQueue()
	q.Sync(waiting("A", "B", "A"))
	assert.Equal(t, 2, q.Len())

	q.Sync(waiting("C"))
	snap := q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, domain.PeerID("C"), snap[0].PeerID)
}

func TestQueueSyncClearsStaleDecisions(t *testing.T) {
	q := NewWaitQueue()
	q.Sync(waiting("A"))
	require.True(t, q.MarkDecided("A"))

	// The participant left and re-joined the waiting room.
	q.Sync(waiting("B"))
	q.Sync(waiting("A", "B"))
	assert.True(t, q.MarkDecided("A"), "a re-joined participant gets a fresh decision slot")
}

func TestQueueConfirmOnDisconnect(t *testing.T) {
	q := NewWaitQueue()
	q.Sync(waiting("A", "B"))

	q.Confirm("B") // B disconnected on its own
	snap := q.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, domain.PeerID("A"), snap[0].PeerID)
}
