package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

var ErrConnectionClosed = errors.New("connection closed")

// signalEnvelope is the opaque negotiation payload relayed through the
// signaling channel. The remote side decodes it with the same shape.
type signalEnvelope struct {
	Kind          string `json:"kind"` // offer | answer | candidate
	SDP           string `json:"sdp,omitempty"`
	Candidate     string `json:"candidate,omitempty"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

// PeerLinkConn wraps one pion PeerConnection for a single remote peer.
type PeerLinkConn struct {
	pc     *webrtc.PeerConnection
	peerID domain.PeerID
	role   core.PeerRole
	cancel context.CancelFunc

	mu         sync.Mutex
	closed     bool
	remoteSet  bool
	candidates []webrtc.ICECandidateInit // buffered until remote description set

	onSignal func(json.RawMessage)
	onTrack  func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed func()
}

func ConfigFromICEServers(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		urls = []string{"stun:stun.l.google.com:19302"}
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: urls}},
	}
}

func NewPeerLinkConn(cfg webrtc.Configuration, peerID domain.PeerID, role core.PeerRole, tracks core.LocalTracks) (*PeerLinkConn, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	c := &PeerLinkConn{pc: pc, peerID: peerID, role: role}

	for _, t := range []webrtc.TrackLocal{tracks.Audio, tracks.Video} {
		if t == nil {
			continue
		}
		if _, err := pc.AddTrack(t); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *PeerLinkConn) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(c.peerID)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer", string(c.peerID)).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			if c.onClosed != nil {
				c.onClosed()
			}
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.onSignal == nil {
			return
		}
		ci := cand.ToJSON()
		env := signalEnvelope{Kind: "candidate", Candidate: ci.Candidate}
		if ci.SDPMid != nil {
			env.SDPMid = *ci.SDPMid
		}
		if ci.SDPMLineIndex != nil {
			env.SDPMLineIndex = *ci.SDPMLineIndex
		}
		c.emit(env)
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("peer", string(c.peerID)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		if c.onTrack != nil {
			c.onTrack(ctx, track, receiver)
		}
	})

	return nil
}

// Negotiate creates and sends the offer. Responders wait for the remote
// offer instead, so this is a no-op for them.
func (c *PeerLinkConn) Negotiate() error {
	if c.role != core.RoleInitiator {
		return nil
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	c.emit(signalEnvelope{Kind: "offer", SDP: offer.SDP})
	return nil
}

// HandleSignal applies one remote negotiation payload. Candidates that
// arrive before the remote description are buffered, not dropped.
func (c *PeerLinkConn) HandleSignal(payload json.RawMessage) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	var env signalEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}

	switch env.Kind {
	case "offer":
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  env.SDP,
		}); err != nil {
			return err
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return err
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return err
		}
		c.emit(signalEnvelope{Kind: "answer", SDP: answer.SDP})
		return c.flushCandidates()

	case "answer":
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{
			Type: webrtc.SDPTypeAnswer,
			SDP:  env.SDP,
		}); err != nil {
			return err
		}
		return c.flushCandidates()

	case "candidate":
		ci := webrtc.ICECandidateInit{Candidate: env.Candidate}
		if env.SDPMid != "" {
			ci.SDPMid = &env.SDPMid
		}
		ci.SDPMLineIndex = &env.SDPMLineIndex

		c.mu.Lock()
		if !c.remoteSet {
			c.candidates = append(c.candidates, ci)
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()
		return c.pc.AddICECandidate(ci)

	default:
		log.Warn().Str("module", "rtc").Str("kind", env.Kind).Msg("unknown signal kind")
		return nil
	}
}

func (c *PeerLinkConn) flushCandidates() error {
	c.mu.Lock()
	c.remoteSet = true
	pending := c.candidates
	c.candidates = nil
	c.mu.Unlock()

	for _, ci := range pending {
		if err := c.pc.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.peerID)).Msg("buffered candidate")
		}
	}
	return nil
}

// ReplaceVideoTrack swaps the outgoing video on the live RTP sender.
func (c *PeerLinkConn) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	for _, sender := range c.pc.GetSenders() {
		t := sender.Track()
		if t == nil || t.Kind() != webrtc.RTPCodecTypeVideo {
			continue
		}
		return sender.ReplaceTrack(track)
	}
	return errors.New("no video sender")
}

func (c *PeerLinkConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("peer", string(c.peerID)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("peer", string(c.peerID)).Msg("closed")
	}
	if c.onClosed != nil {
		c.onClosed()
	}
}

func (c *PeerLinkConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *PeerLinkConn) emit(env signalEnvelope) {
	if c.onSignal == nil {
		return
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("marshal signal")
		return
	}
	c.onSignal(b)
}

func (c *PeerLinkConn) OnSignal(fn func(json.RawMessage)) { c.onSignal = fn }

func (c *PeerLinkConn) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	c.onTrack = fn
}

func (c *PeerLinkConn) OnClosed(fn func()) { c.onClosed = fn }
