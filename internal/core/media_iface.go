package core

import (
	"context"
	"encoding/json"
	"image"

	"github.com/pion/webrtc/v4"
)

// PeerRole decides who creates the offer for a link.
type PeerRole int

const (
	RoleInitiator PeerRole = iota
	RoleResponder
)

// MediaConnection wraps one peer-to-peer connection.
// Exactly one PeerRecord owns a given MediaConnection; Close is
// safe to call more than once.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Negotiate kicks off the offer exchange; a no-op for responders.
	Negotiate() error
	// HandleSignal applies one opaque negotiation payload from the remote side.
	HandleSignal(payload json.RawMessage) error
	// ReplaceVideoTrack swaps the outgoing video on the live sender.
	ReplaceVideoTrack(track webrtc.TrackLocal) error
	// OnSignal sets the callback for locally produced negotiation payloads.
	OnSignal(func(payload json.RawMessage))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// OnClosed sets a callback for cleanup after the connection dies.
	OnClosed(func())
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
}

// FrameSource is a live capture device or synthetic generator.
// Ready is closed once the first frame is available; Frame returns
// the most recent frame after that.
type FrameSource interface {
	Ready() <-chan struct{}
	Frame() (*image.RGBA, error)
	Close()
}

// LocalTracks bundles the shared outgoing media. Tracks are shared by
// reference across every peer link; no peer-local copies exist.
type LocalTracks struct {
	Audio webrtc.TrackLocal
	Video webrtc.TrackLocal
}
