package mesh

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
)

type pendingSignal struct {
	payload json.RawMessage
	at      time.Time
}

// pendingBuffer holds signals that arrived before their peer record.
// Ordering is not guaranteed across event types, so an offer can beat
// its own user-connected; we park it here instead of dropping.
type pendingBuffer struct {
	mu      sync.Mutex
	byPeer  map[domain.PeerID][]pendingSignal
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func newPendingBuffer(ttl time.Duration, maxSize int) *pendingBuffer {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if maxSize <= 0 {
		maxSize = 16
	}
	return &pendingBuffer{
		byPeer:  make(map[domain.PeerID][]pendingSignal),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Add parks a signal. Returns false when the per-peer bucket is full.
func (b *pendingBuffer) Add(id domain.PeerID, payload json.RawMessage) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	fresh := b.prune(id)
	if len(fresh) >= b.maxSize {
		b.byPeer[id] = fresh
		return false
	}
	b.byPeer[id] = append(fresh, pendingSignal{payload: payload, at: b.now()})
	return true
}

// Take drains all still-fresh signals for a peer, in arrival order.
func (b *pendingBuffer) Take(id domain.PeerID) []json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()

	fresh := b.prune(id)
	delete(b.byPeer, id)

	out := make([]json.RawMessage, 0, len(fresh))
	for _, p := range fresh {
		out = append(out, p.payload)
	}
	return out
}

func (b *pendingBuffer) Drop(id domain.PeerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.byPeer, id)
}

// Clear empties every bucket; used on whole-mesh teardown.
func (b *pendingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byPeer = make(map[domain.PeerID][]pendingSignal)
}

// prune must be called with the lock held.
func (b *pendingBuffer) prune(id domain.PeerID) []pendingSignal {
	cutoff := b.now().Add(-b.ttl)
	all := b.byPeer[id]
	fresh := all[:0]
	for _, p := range all {
		if p.at.After(cutoff) {
			fresh = append(fresh, p)
		}
	}
	return fresh
}
