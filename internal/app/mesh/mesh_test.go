package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

type fakeConn struct {
	mu          sync.Mutex
	role        core.PeerRole
	started     int
	negotiated  int
	closed      int
	signals     []json.RawMessage
	failReplace bool
	replaced    int
	onSignal    func(json.RawMessage)
}

func (f *fakeConn) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	return nil
}

func (f *fakeConn) Negotiate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.role == core.RoleInitiator {
		f.negotiated++
	}
	return nil
}

func (f *fakeConn) HandleSignal(p json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, p)
	return nil
}

func (f *fakeConn) ReplaceVideoTrack(webrtc.TrackLocal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced++
	if f.failReplace {
		return errors.New("sender gone")
	}
	return nil
}

func (f *fakeConn) OnSignal(fn func(json.RawMessage)) { f.onSignal = fn }
func (f *fakeConn) OnTrack(func(context.Context, *webrtc.TrackRemote, *webrtc.RTPReceiver)) {}
func (f *fakeConn) OnClosed(func()) {}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed > 0
}

type harness struct {
	mgr     *Manager
	conns   map[domain.PeerID]*fakeConn
	creates int
	sent    []domain.PeerID
}

func newHarness() *harness {
	h := &harness{conns: make(map[domain.PeerID]*fakeConn)}
	factory := func(id domain.PeerID, role core.PeerRole, _ core.LocalTracks) (core.MediaConnection, error) {
		h.creates++
		c := &fakeConn{role: role}
		h.conns[id] = c
		return c, nil
	}
	h.mgr = NewManager(factory, func(to domain.PeerID, _ json.RawMessage) {
		h.sent = append(h.sent, to)
	}, Options{})
	return h
}

func TestCreatePeerExactlyOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.mgr.CreateOutboundPeer(ctx, "peer-a", core.LocalTracks{}))
	require.NoError(t, h.mgr.CreateOutboundPeer(ctx, "peer-a", core.LocalTracks{}))

	assert.Equal(t, 1, h.creates, "duplicate create must be a no-op")
	assert.Equal(t, 1, h.conns["peer-a"].negotiated)
	assert.True(t, h.mgr.Has("peer-a"))
}

func TestSignalForUnknownPeerIsBuffered(t *testing.T) {
	h := newHarness()

	// Two signals race ahead of user-connected for the same peer.
	h.mgr.RelaySignal("peer-b", json.RawMessage(`{"kind":"offer"}`))
	h.mgr.RelaySignal("peer-b", json.RawMessage(`{"kind":"candidate"}`))

	assert.False(t, h.mgr.Has("peer-b"), "buffered signal must not create a record")
	assert.Zero(t, h.creates)

	require.NoError(t, h.mgr.CreateInboundPeer(context.Background(), "peer-b", core.LocalTracks{}))

	assert.Equal(t, 1, h.creates, "buffered signals must not create duplicate connections")
	require.Len(t, h.conns["peer-b"].signals, 2)
	assert.JSONEq(t, `{"kind":"offer"}`, string(h.conns["peer-b"].signals[0]))
}

func TestDestroyPeerIdempotent(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.mgr.CreateOutboundPeer(context.Background(), "peer-c", core.LocalTracks{}))

	h.mgr.DestroyPeer("peer-c")
	h.mgr.DestroyPeer("peer-c") // duplicate disconnect notification

	assert.Equal(t, 1, h.conns["peer-c"].closed, "connection must be closed exactly once")
	assert.False(t, h.mgr.Has("peer-c"))
}

func TestDestroyAllClosesEveryLinkOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for _, id := range []domain.PeerID{"a", "b", "c"} {
		require.NoError(t, h.mgr.CreateOutboundPeer(ctx, id, core.LocalTracks{}))
	}

	h.mgr.DestroyAll()
	h.mgr.DestroyAll()

	for id, conn := range h.conns {
		assert.Equal(t, 1, conn.closed, "peer %s", id)
	}
	assert.Zero(t, h.mgr.Count())
}

func TestReplaceTrackFailureIsIsolated(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	for _, id := range []domain.PeerID{"a", "b", "c"} {
		require.NoError(t, h.mgr.CreateOutboundPeer(ctx, id, core.LocalTracks{}))
	}
	h.conns["b"].failReplace = true

	attempted, failed := h.mgr.ReplaceOutboundVideoTrack(nil)

	assert.Equal(t, 3, attempted, "every live link gets a replacement attempt")
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, h.conns["a"].replaced)
	assert.Equal(t, 1, h.conns["c"].replaced)
}

func TestSignalAfterDestroyGoesBackToBuffer(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.mgr.CreateOutboundPeer(context.Background(), "peer-d", core.LocalTracks{}))
	h.mgr.DestroyPeer("peer-d")

	h.mgr.RelaySignal("peer-d", json.RawMessage(`{"kind":"candidate"}`))

	assert.Len(t, h.conns["peer-d"].signals, 0, "destroyed link must not receive signals")
}

func TestDestroyAllClearsBufferedSignals(t *testing.T) {
	h := newHarness()
	h.mgr.RelaySignal("peer-e", json.RawMessage(`{"kind":"offer"}`))

	h.mgr.DestroyAll()

	require.NoError(t, h.mgr.CreateOutboundPeer(context.Background(), "peer-e", core.LocalTracks{}))
	assert.Empty(t, h.conns["peer-e"].signals, "signals parked before teardown must not replay")
}
