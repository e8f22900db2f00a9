package admission

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/domain"
)

// WaitQueue is the host's view of participants pending admission.
//
// Admit/reject commands are fire-and-forget; an entry leaves the queue
// only when a later relay update confirms the decision took effect.
// Until then a decided entry is only marked, never removed.
type WaitQueue struct {
	mu      sync.RWMutex
	order   []domain.PeerID
	entries map[domain.PeerID]domain.WaitingParticipant
	decided map[domain.PeerID]bool
}

func NewWaitQueue() *WaitQueue {
	return &WaitQueue{
		entries: make(map[domain.PeerID]domain.WaitingParticipant),
		decided: make(map[domain.PeerID]bool),
	}
}

// Sync replaces the queue with the relay's authoritative list.
func (q *WaitQueue) Sync(list []domain.WaitingParticipant) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.order = q.order[:0]
	seen := make(map[domain.PeerID]domain.WaitingParticipant, len(list))
	for _, w := range list {
		if _, dup := seen[w.PeerID]; dup {
			continue
		}
		seen[w.PeerID] = w
		q.order = append(q.order, w.PeerID)
	}
	q.entries = seen

	for id := range q.decided {
		if _, still := seen[id]; !still {
			delete(q.decided, id)
		}
	}
}

// MarkDecided records that a command was sent for this entry. The entry
// stays visible until Confirm removes it.
func (q *WaitQueue) MarkDecided(id domain.PeerID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[id]; !ok {
		return false
	}
	if q.decided[id] {
		log.Debug().Str("module", "admission").Str("peer", string(id)).Msg("duplicate decision ignored")
		return false
	}
	q.decided[id] = true
	return true
}

// Confirm removes an entry once a roster update proves the decision
// took effect (or the participant disconnected on its own).
func (q *WaitQueue) Confirm(id domain.PeerID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(id)
}

// remove must be called with the lock held.
func (q *WaitQueue) remove(id domain.PeerID) {
	if _, ok := q.entries[id]; !ok {
		return
	}
	delete(q.entries, id)
	delete(q.decided, id)
	for i, pid := range q.order {
		if pid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the queue in arrival order.
func (q *WaitQueue) Snapshot() []domain.WaitingParticipant {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]domain.WaitingParticipant, 0, len(q.order))
	for _, id := range q.order {
		if w, ok := q.entries[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

func (q *WaitQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
