// Package mesh owns one media connection per remote participant and
// keeps the invariant: each peer is negotiated exactly once unless
// explicitly renegotiated.
package mesh

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// ConnFactory builds a media connection for one remote peer. Injected
// so the mesh is testable without a live transport.
type ConnFactory func(id domain.PeerID, role core.PeerRole, tracks core.LocalTracks) (core.MediaConnection, error)

type peerLink struct {
	id        domain.PeerID
	conn      core.MediaConnection
	destroyed bool
}

type Manager struct {
	factory ConnFactory
	send    func(to domain.PeerID, payload json.RawMessage)

	mu      sync.RWMutex
	links   map[domain.PeerID]*peerLink
	pending *pendingBuffer
}

type Options struct {
	PendingTTL time.Duration
	PendingMax int
}

func NewManager(factory ConnFactory, send func(to domain.PeerID, payload json.RawMessage), opts Options) *Manager {
	return &Manager{
		factory: factory,
		send:    send,
		links:   make(map[domain.PeerID]*peerLink),
		pending: newPendingBuffer(opts.PendingTTL, opts.PendingMax),
	}
}

// CreateOutboundPeer sets up the initiator side of a link. Negotiation
// completes asynchronously over signaling. Duplicate creates for an
// existing peer are no-ops: one link per peer, ever.
func (m *Manager) CreateOutboundPeer(ctx context.Context, id domain.PeerID, tracks core.LocalTracks) error {
	return m.createPeer(ctx, id, core.RoleInitiator, tracks)
}

// CreateInboundPeer sets up the responder side; the remote offer will
// arrive as a relayed signal.
func (m *Manager) CreateInboundPeer(ctx context.Context, id domain.PeerID, tracks core.LocalTracks) error {
	return m.createPeer(ctx, id, core.RoleResponder, tracks)
}

func (m *Manager) createPeer(ctx context.Context, id domain.PeerID, role core.PeerRole, tracks core.LocalTracks) error {
	m.mu.Lock()
	if link, ok := m.links[id]; ok && !link.destroyed {
		m.mu.Unlock()
		log.Debug().Str("module", "mesh").Str("peer", string(id)).Msg("link exists, create ignored")
		return nil
	}
	m.mu.Unlock()

	conn, err := m.factory(id, role, tracks)
	if err != nil {
		return err
	}
	conn.OnSignal(func(payload json.RawMessage) {
		m.send(id, payload)
	})

	m.mu.Lock()
	if link, ok := m.links[id]; ok && !link.destroyed {
		// Lost the race against a concurrent create for the same id.
		m.mu.Unlock()
		conn.Close()
		return nil
	}
	m.links[id] = &peerLink{id: id, conn: conn}
	m.mu.Unlock()

	if err := conn.Start(ctx); err != nil {
		m.DestroyPeer(id)
		return err
	}
	if err := conn.Negotiate(); err != nil {
		m.DestroyPeer(id)
		return err
	}

	log.Info().Str("module", "mesh").Str("peer", string(id)).Int("role", int(role)).Msg("link created")
	m.flushPending(id, conn)
	return nil
}

// RelaySignal forwards an opaque negotiation payload to the matching
// link. A signal for an unknown peer is parked in the pending buffer;
// it must never throw and never create a dangling record.
func (m *Manager) RelaySignal(id domain.PeerID, payload json.RawMessage) {
	m.mu.RLock()
	link, ok := m.links[id]
	m.mu.RUnlock()

	if !ok || link.destroyed {
		if !m.pending.Add(id, payload) {
			log.Warn().Str("module", "mesh").Str("peer", string(id)).Msg("pending buffer full, signal dropped")
		}
		return
	}
	if err := link.conn.HandleSignal(payload); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("peer", string(id)).Msg("apply signal")
	}
}

func (m *Manager) flushPending(id domain.PeerID, conn core.MediaConnection) {
	for _, payload := range m.pending.Take(id) {
		if err := conn.HandleSignal(payload); err != nil {
			log.Error().Err(err).Str("module", "mesh").Str("peer", string(id)).Msg("apply buffered signal")
		}
	}
}

// DestroyPeer is idempotent; duplicate disconnect notifications are
// expected and must not double-close the connection.
func (m *Manager) DestroyPeer(id domain.PeerID) {
	m.mu.Lock()
	link, ok := m.links[id]
	if !ok || link.destroyed {
		m.mu.Unlock()
		return
	}
	link.destroyed = true
	delete(m.links, id)
	m.mu.Unlock()

	m.pending.Drop(id)
	link.conn.Close()
	log.Info().Str("module", "mesh").Str("peer", string(id)).Msg("link destroyed")
}

// DestroyAll tears down every link; part of session teardown.
func (m *Manager) DestroyAll() {
	m.mu.Lock()
	links := make([]*peerLink, 0, len(m.links))
	for _, l := range m.links {
		if !l.destroyed {
			l.destroyed = true
			links = append(links, l)
		}
	}
	m.links = make(map[domain.PeerID]*peerLink)
	m.mu.Unlock()

	m.pending.Clear()
	for _, l := range links {
		l.conn.Close()
	}
}

// ReplaceOutboundVideoTrack swaps the outgoing video on every live
// link. A failure on one peer never aborts the others; the number of
// attempts always equals the number of live links.
func (m *Manager) ReplaceOutboundVideoTrack(track webrtc.TrackLocal) (attempted, failed int) {
	m.mu.RLock()
	links := make([]*peerLink, 0, len(m.links))
	for _, l := range m.links {
		if !l.destroyed {
			links = append(links, l)
		}
	}
	m.mu.RUnlock()

	for _, l := range links {
		attempted++
		if err := l.conn.ReplaceVideoTrack(track); err != nil {
			failed++
			log.Error().Err(err).Str("module", "mesh").Str("peer", string(l.id)).Msg("replace video track")
		}
	}
	return attempted, failed
}

// Has reports whether a live link exists for the peer.
func (m *Manager) Has(id domain.PeerID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[id]
	return ok && !link.destroyed
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.links)
}
