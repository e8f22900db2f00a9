package session

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/admission"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// peerDescriptor is how the relay describes one participant.
type peerDescriptor struct {
	PeerID      domain.PeerID             `json:"peerId"`
	UserID      domain.UserID             `json:"userId"`
	DisplayName string                    `json:"displayName"`
	IsHost      bool                      `json:"isHost"`
	Reputation  domain.ReputationSnapshot `json:"reputation"`
}

// dispatch routes one relay event. An event referencing an unknown
// peer is a no-op, never a panic. Ordering is only guaranteed per
// remote participant, not across event types.
func (c *Controller) dispatch(ev core.InboundEvent) {
	switch ev.Name {
	case core.EvHostStatus:
		c.onHostStatus(ev.Payload)
	case core.EvExistingUsers:
		c.onExistingUsers(ev.Payload)
	case core.EvUserConnected:
		c.onUserConnected(ev.Payload)
	case core.EvUserDisconnected:
		c.onUserDisconnected(ev.Payload)
	case core.EvSignal:
		c.onSignal(ev.Payload)
	case core.EvAdmitted:
		if err := c.fsm.HandleAdmitted(); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("admitted event")
		}
	case core.EvRejected:
		_ = c.fsm.HandleRejected(admission.RejectByHost, rejectReason(ev.Payload))
	case core.EvAdmissionRejected:
		_ = c.fsm.HandleRejected(admission.RejectByPolicy, rejectReason(ev.Payload))
	case core.EvWaitingRoomStatus:
		// informational for a waiting participant; nothing to mutate
	case core.EvWaitingUpdate:
		c.onWaitingUpdate(ev.Payload)
	case core.EvHandRaiseToggle:
		c.onPeerFlag(ev.Payload, func(p *domain.Peer, on bool) { p.Media.HandRaised = on })
	case core.EvToggleAudio:
		c.onPeerFlag(ev.Payload, func(p *domain.Peer, on bool) { p.Media.AudioOn = on })
	case core.EvToggleVideo:
		c.onPeerFlag(ev.Payload, func(p *domain.Peer, on bool) { p.Media.VideoOn = on })
	case core.EvStartScreenShare:
		c.onPeerFlag(ev.Payload, func(p *domain.Peer, _ bool) { p.Media.ScreenSharing = true })
	case core.EvStopScreenShare:
		c.onPeerFlag(ev.Payload, func(p *domain.Peer, _ bool) { p.Media.ScreenSharing = false })
	case core.EvChatMessage, core.EvTypingStart, core.EvTypingStop, core.EvEmojiReaction:
		// chat is relayed to the presentation layer as-is
	case core.EvHostMutedYou:
		c.onHostMutedYou(ev.Payload)
	case core.EvHostDisabledVideo:
		c.onHostDisabledVideo(ev.Payload)
	case core.EvHostRemovedYou:
		c.onHostRemovedYou(ev.Payload)
	case core.EvHostMutedAll:
		c.onHostMutedAll(ev.Payload)
	case core.EvHostDisabledVideos:
		c.onHostDisabledAllVideos(ev.Payload)
	case core.EvDisconnected:
		c.onDisconnected()
	default:
		log.Warn().Str("module", "session").Str("event", ev.Name).Msg("unknown event")
	}
}

func (c *Controller) onHostStatus(payload json.RawMessage) {
	var p struct {
		IsHost         bool `json:"isHost"`
		IsAdmitted     bool `json:"isAdmitted"`
		MeetingStarted bool `json:"meetingStarted"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad host-status payload")
		return
	}
	c.mu.Lock()
	c.isHost = p.IsHost
	c.mu.Unlock()

	if err := c.fsm.HandleHostStatus(p.IsHost, p.IsAdmitted); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("host-status transition")
	}
}

// onExistingUsers is the roster sync on join: one link per already
// present participant, initiator chosen by the canonical id rule.
func (c *Controller) onExistingUsers(payload json.RawMessage) {
	var list []peerDescriptor
	if err := json.Unmarshal(payload, &list); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad existing-users payload")
		return
	}
	ids := make([]domain.UserID, 0, len(list))
	for _, d := range list {
		c.admitPeer(d)
		ids = append(ids, d.UserID)
	}
	// Scores live on the backend; refresh off the event loop.
	go c.mod.RefreshSnapshots(c.ctx, ids)
}

func (c *Controller) onUserConnected(payload json.RawMessage) {
	var d peerDescriptor
	if err := json.Unmarshal(payload, &d); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad user-connected payload")
		return
	}
	c.admitPeer(d)
	// A connect is also the roster confirmation the waiting queue is
	// waiting for after an admit decision.
	c.queue.Confirm(d.PeerID)
}

// admitPeer registers the roster entry and creates the media link.
// Duplicate events for the same peerId keep the single existing record.
func (c *Controller) admitPeer(d peerDescriptor) {
	if d.PeerID == c.peerID {
		return
	}

	c.mu.Lock()
	if _, known := c.peers[d.PeerID]; known {
		c.mu.Unlock()
		log.Debug().Str("module", "session").Str("peer", string(d.PeerID)).Msg("duplicate roster entry ignored")
		return
	}
	peer := domain.NewPeer(d.PeerID, d.UserID, d.DisplayName)
	peer.IsHost = d.IsHost
	peer.Reputation = d.Reputation
	c.peers[d.PeerID] = peer
	c.mu.Unlock()

	var err error
	if c.shouldInitiate(d.PeerID) {
		err = c.mesh.CreateOutboundPeer(c.ctx, d.PeerID, c.tracks)
	} else {
		err = c.mesh.CreateInboundPeer(c.ctx, d.PeerID, c.tracks)
	}
	if err != nil {
		// One failed negotiation never touches the other peers.
		log.Error().Err(err).Str("module", "session").Str("peer", string(d.PeerID)).Msg("peer link setup")
		c.notify(core.NoticeWarn, "could not connect to "+d.DisplayName)
	}
}

func (c *Controller) onUserDisconnected(payload json.RawMessage) {
	var p struct {
		PeerID domain.PeerID `json:"peerId"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad user-disconnected payload")
		return
	}

	c.mesh.DestroyPeer(p.PeerID)
	c.queue.Confirm(p.PeerID)

	c.mu.Lock()
	delete(c.peers, p.PeerID)
	c.mu.Unlock()
}

func (c *Controller) onSignal(payload json.RawMessage) {
	var p struct {
		From domain.PeerID   `json:"from"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad signal payload")
		return
	}
	if p.From == "" {
		return
	}
	c.mesh.RelaySignal(p.From, p.Data)
}

func (c *Controller) onWaitingUpdate(payload json.RawMessage) {
	var p struct {
		Waiting []domain.WaitingParticipant `json:"waiting"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad waiting update payload")
		return
	}
	c.queue.Sync(p.Waiting)
}

// onPeerFlag applies a boolean state-sync event to one roster entry.
func (c *Controller) onPeerFlag(payload json.RawMessage, apply func(p *domain.Peer, on bool)) {
	var p struct {
		From domain.PeerID `json:"from"`
		On   bool          `json:"on"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("bad state payload")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	peer, ok := c.peers[p.From]
	if !ok {
		return // unknown peer, no-op
	}
	apply(peer, p.On)
}

type hostNotice struct {
	HostName string `json:"hostName"`
	Reason   string `json:"reason"`
}

// Host effects are applied by the receiving participant itself; the
// host never gets a direct acknowledgement.

func (c *Controller) onHostMutedYou(payload json.RawMessage) {
	n := decodeNotice(payload)
	c.setLocalAudio(false)
	c.notify(core.NoticeWarn, n.HostName+" muted you")
}

func (c *Controller) onHostDisabledVideo(payload json.RawMessage) {
	n := decodeNotice(payload)
	c.setLocalVideo(false)
	c.notify(core.NoticeWarn, n.HostName+" turned off your camera")
}

func (c *Controller) onHostRemovedYou(payload json.RawMessage) {
	n := decodeNotice(payload)
	c.notify(core.NoticeError, n.HostName+" removed you from the meeting")
	c.Teardown()
}

func (c *Controller) onHostMutedAll(payload json.RawMessage) {
	if c.IsHost() {
		return
	}
	n := decodeNotice(payload)
	c.setLocalAudio(false)
	c.notify(core.NoticeWarn, n.HostName+" muted everyone")
}

func (c *Controller) onHostDisabledAllVideos(payload json.RawMessage) {
	if c.IsHost() {
		return
	}
	n := decodeNotice(payload)
	c.setLocalVideo(false)
	c.notify(core.NoticeWarn, n.HostName+" turned off all cameras")
}

func (c *Controller) onDisconnected() {
	c.mu.Lock()
	c.quality = domain.QualityPoor
	c.mu.Unlock()
	// Losing the relay degrades displayed quality but does not destroy
	// the session; only explicit teardown does that.
	c.notify(core.NoticeWarn, "connection to the meeting server lost")
}

func decodeNotice(payload json.RawMessage) hostNotice {
	var n hostNotice
	if err := json.Unmarshal(payload, &n); err != nil || n.HostName == "" {
		n.HostName = "the host"
	}
	return n
}

func rejectReason(payload json.RawMessage) string {
	var p struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Reason == "" {
		return "the host declined your request to join"
	}
	return p.Reason
}
