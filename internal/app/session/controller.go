// Package session is the composition root of one meeting attempt. It
// owns the roster, the admission state machine, the peer mesh, the
// compositor and the moderation coordinator, and exposes read-only
// snapshots to the presentation layer.
package session

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/media"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/app/admission"
	"github.com/dkeye/Meet/internal/app/compositor"
	"github.com/dkeye/Meet/internal/app/mesh"
	"github.com/dkeye/Meet/internal/app/moderation"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Deps carries everything the controller does not build itself.
// Factory and Devices default to the real implementations.
type Deps struct {
	Config   *config.Config
	Channel  core.SignalChannel
	Backend  core.ReputationService
	Devices  media.DeviceManager
	Notifier core.Notifier
	Factory  mesh.ConnFactory

	// OnLeave runs once after teardown completes (navigation away).
	OnLeave func()
}

type Controller struct {
	cfg      *config.Config
	roomID   domain.RoomID
	identity domain.Identity
	peerID   domain.PeerID

	channel  core.SignalChannel
	mesh     *mesh.Manager
	fsm      *admission.FSM
	queue    *admission.WaitQueue
	mod      *moderation.Coordinator
	devices  media.DeviceManager
	notifier core.Notifier

	mu         sync.RWMutex
	peers      map[domain.PeerID]*domain.Peer
	isHost     bool
	quality    domain.ConnectionQuality
	localMedia domain.MediaState

	// shared outgoing tracks; one mutation is visible to every peer
	tracks      core.LocalTracks
	cameraTrack *webrtc.TrackLocalStaticSample
	screenTrack *webrtc.TrackLocalStaticSample
	compTrack   *webrtc.TrackLocalStaticSample

	cameraSrc core.FrameSource
	micSrc    core.FrameSource
	screenSrc core.FrameSource
	composite *compositor.Session

	ctx          context.Context
	cancel       context.CancelFunc
	teardownOnce sync.Once
	rejectTimer  *time.Timer
	onLeave      func()
}

func NewController(roomID domain.RoomID, identity domain.Identity, deps Deps) *Controller {
	devices := deps.Devices
	if devices == nil {
		devices = media.PatternDevices{}
	}

	c := &Controller{
		cfg:        deps.Config,
		roomID:     roomID,
		identity:   identity,
		peerID:     domain.PeerID(uuid.NewString()),
		channel:    deps.Channel,
		fsm:        admission.NewFSM(),
		queue:      admission.NewWaitQueue(),
		devices:    devices,
		notifier:   deps.Notifier,
		peers:      make(map[domain.PeerID]*domain.Peer),
		quality:    domain.QualityGood,
		localMedia: domain.MediaState{AudioOn: true, VideoOn: true, HasCamera: true},
		onLeave:    deps.OnLeave,
	}

	factory := deps.Factory
	if factory == nil {
		iceCfg := rtc.ConfigFromICEServers(deps.Config.ICEServers)
		factory = func(id domain.PeerID, role core.PeerRole, tracks core.LocalTracks) (core.MediaConnection, error) {
			return rtc.NewPeerLinkConn(iceCfg, id, role, tracks)
		}
	}
	c.mesh = mesh.NewManager(factory, c.sendSignalTo, mesh.Options{
		PendingTTL: deps.Config.PendingSignalTTL,
		PendingMax: deps.Config.PendingSignalMax,
	})

	c.mod = moderation.NewCoordinator(
		c.IsHost,
		identity.DisplayName,
		string(roomID),
		c.channel.Send,
		deps.Backend,
		c.applySnapshot,
		deps.Notifier,
		deps.Config.RatePointsCap,
	)

	c.fsm.OnRejected(c.onRejected)
	c.fsm.OnActive(func() {
		log.Info().Str("module", "session").Msg("admitted, session active")
	})
	c.fsm.OnWaiting(func() {
		c.notify(core.NoticeInfo, "waiting for the host to let you in")
	})

	return c
}

// Run starts local media and consumes relay events until the channel
// closes or ctx is cancelled. It always ends in Teardown.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.ctx = ctx
	c.cancel = cancel
	defer c.Teardown()

	if err := c.startLocalMedia(ctx); err != nil {
		// Audio-only sessions are still sessions.
		c.notify(core.NoticeWarn, mediaErrorMessage(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.channel.Events():
			if !ok {
				// The relay dropping only degrades quality; the session
				// keeps running until explicit teardown or cancellation.
				<-ctx.Done()
				return ctx.Err()
			}
			c.dispatch(ev)
		}
	}
}

// sendSignalTo relays one negotiation payload to a specific peer.
func (c *Controller) sendSignalTo(to domain.PeerID, payload json.RawMessage) {
	err := c.channel.Send(core.EvSignal, map[string]any{
		"to":   to,
		"from": c.peerID,
		"data": payload,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "session").Str("peer", string(to)).Msg("send signal")
	}
}

// shouldInitiate applies the canonical initiator rule: the side with
// the lexicographically smaller peer id creates the offer. Both sides
// compute the same answer regardless of event arrival order.
func (c *Controller) shouldInitiate(remote domain.PeerID) bool {
	return string(c.peerID) < string(remote)
}

func (c *Controller) IsHost() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isHost
}

func (c *Controller) AdmissionState() admission.State { return c.fsm.State() }

// applySnapshot updates the reputation cache of one roster entry.
func (c *Controller) applySnapshot(userID domain.UserID, snap domain.ReputationSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.peers {
		if p.UserID == userID {
			p.Reputation = snap
		}
	}
}

// Snapshot is the read-only view served to the presentation layer.
func (c *Controller) Snapshot() core.SessionSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	peers := make([]core.PeerDTO, 0, len(c.peers))
	for _, p := range c.peers {
		peers = append(peers, core.PeerDTO{
			PeerID:      p.PeerID,
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			IsHost:      p.IsHost,
			Media:       p.Media,
			Reputation:  p.Reputation,
		})
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].PeerID < peers[j].PeerID })

	snap := core.SessionSnapshot{
		RoomID:         c.roomID,
		Local:          c.identity,
		IsHost:         c.isHost,
		AdmissionState: c.fsm.State().String(),
		Quality:        c.quality,
		Media:          c.localMedia,
		Peers:          peers,
	}
	if c.isHost {
		snap.Waiting = c.queue.Snapshot()
	}
	return snap
}

// Moderation exposes host commands and rating calls.
func (c *Controller) Moderation() *moderation.Coordinator { return c.mod }

// Admit asks the relay to let a waiting participant in. The queue entry
// survives until a roster update confirms the decision.
func (c *Controller) Admit(id domain.PeerID) error {
	if !c.IsHost() {
		return moderation.ErrNotHost
	}
	if !c.queue.MarkDecided(id) {
		return nil
	}
	return c.channel.Send(core.EvAdmit, map[string]any{"peerId": id, "roomId": c.roomID})
}

func (c *Controller) Reject(id domain.PeerID) error {
	if !c.IsHost() {
		return moderation.ErrNotHost
	}
	if !c.queue.MarkDecided(id) {
		return nil
	}
	return c.channel.Send(core.EvReject, map[string]any{"peerId": id, "roomId": c.roomID})
}

func (c *Controller) SendChat(content string) error {
	return c.channel.Send(core.EvChatMessage, map[string]any{
		"from":        c.peerID,
		"userId":      c.identity.UserID,
		"displayName": c.identity.DisplayName,
		"content":     content,
	})
}

func (c *Controller) SendTyping(active bool) error {
	ev := core.EvTypingStop
	if active {
		ev = core.EvTypingStart
	}
	return c.channel.Send(ev, map[string]any{"from": c.peerID})
}

func (c *Controller) SendReaction(emoji string) error {
	return c.channel.Send(core.EvEmojiReaction, map[string]any{
		"from":  c.peerID,
		"emoji": emoji,
	})
}

func (c *Controller) ToggleHandRaise() error {
	c.mu.Lock()
	c.localMedia.HandRaised = !c.localMedia.HandRaised
	raised := c.localMedia.HandRaised
	c.mu.Unlock()
	return c.channel.Send(core.EvHandRaiseToggle, map[string]any{"from": c.peerID, "on": raised})
}

func (c *Controller) notify(level core.NoticeLevel, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(level, msg)
	}
}

func mediaErrorMessage(err error) string {
	switch media.KindOf(err) {
	case media.KindPermissionDenied:
		return "camera or microphone access was denied"
	case media.KindDeviceInUse:
		return "another application is using your camera"
	case media.KindOverconstrained:
		return "your camera does not support the requested quality"
	case media.KindNotFound:
		return "no camera or microphone was found"
	}
	return "could not start your camera or microphone"
}
