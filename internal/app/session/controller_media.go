package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/adapters/media"
	"github.com/dkeye/Meet/internal/app/compositor"
	"github.com/dkeye/Meet/internal/core"
)

// startLocalMedia acquires the microphone and camera and wires the
// shared outgoing tracks. A camera failure degrades to audio-only.
func (c *Controller) startLocalMedia(ctx context.Context) error {
	audioTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "meet-mic",
	)
	if err != nil {
		return fmt.Errorf("audio track: %w", err)
	}
	cameraTrack, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "meet-camera",
	)
	if err != nil {
		return fmt.Errorf("camera track: %w", err)
	}

	c.mu.Lock()
	c.cameraTrack = cameraTrack
	c.tracks = core.LocalTracks{Audio: audioTrack, Video: cameraTrack}
	c.mu.Unlock()

	mic, err := c.devices.OpenMicrophone()
	if err != nil {
		return err
	}
	c.micSrc = mic

	cam, err := media.Acquire(c.devices.OpenCamera, c.captureConstraints())
	if err != nil {
		c.mu.Lock()
		c.localMedia.HasCamera = false
		c.localMedia.VideoOn = false
		c.mu.Unlock()
		return err
	}
	c.cameraSrc = cam

	go c.pumpFrames(ctx, cam, cameraTrack, c.cfg.CompositeFPS, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.localMedia.VideoOn
	})
	return nil
}

func (c *Controller) captureConstraints() media.Constraints {
	return media.Constraints{
		Width:  c.cfg.CompositeW,
		Height: c.cfg.CompositeH,
		FPS:    c.cfg.CompositeFPS,
	}
}

// pumpFrames feeds frames from a source into a sample track until ctx
// ends. Disabled sources skip ticks; the track object stays shared.
func (c *Controller) pumpFrames(ctx context.Context, src core.FrameSource, track *webrtc.TrackLocalStaticSample, fps int, enabled func() bool) {
	if fps <= 0 {
		fps = 15
	}
	dur := time.Second / time.Duration(fps)
	ticker := time.NewTicker(dur)
	defer ticker.Stop()

	select {
	case <-src.Ready():
	case <-ctx.Done():
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !enabled() {
				continue
			}
			frame, err := src.Frame()
			if err != nil {
				continue
			}
			c.writeFrame(track, frame, dur)
		}
	}
}

func (c *Controller) writeFrame(track *webrtc.TrackLocalStaticSample, frame *image.RGBA, dur time.Duration) {
	if err := track.WriteSample(pionmedia.Sample{Data: frame.Pix, Duration: dur}); err != nil {
		log.Debug().Err(err).Str("module", "session").Msg("write sample")
	}
}

// ToggleAudio flips the shared microphone state. One mutation, visible
// to every peer at once; there are no peer-local track copies.
func (c *Controller) ToggleAudio() error {
	c.mu.Lock()
	c.localMedia.AudioOn = !c.localMedia.AudioOn
	on := c.localMedia.AudioOn
	c.mu.Unlock()
	return c.channel.Send(core.EvToggleAudio, map[string]any{"from": c.peerID, "on": on})
}

func (c *Controller) ToggleVideo() error {
	c.mu.Lock()
	if !c.localMedia.HasCamera {
		c.mu.Unlock()
		return errors.New("no camera available")
	}
	c.localMedia.VideoOn = !c.localMedia.VideoOn
	on := c.localMedia.VideoOn
	c.mu.Unlock()
	return c.channel.Send(core.EvToggleVideo, map[string]any{"from": c.peerID, "on": on})
}

func (c *Controller) setLocalAudio(on bool) {
	c.mu.Lock()
	c.localMedia.AudioOn = on
	c.mu.Unlock()
	_ = c.channel.Send(core.EvToggleAudio, map[string]any{"from": c.peerID, "on": on})
}

func (c *Controller) setLocalVideo(on bool) {
	c.mu.Lock()
	c.localMedia.VideoOn = on
	c.mu.Unlock()
	_ = c.channel.Send(core.EvToggleVideo, map[string]any{"from": c.peerID, "on": on})
}

// StartScreenShare switches every live link's outgoing video to the
// screen capture, composited with a camera overlay when requested and
// possible. A second start cleanly replaces a running share.
func (c *Controller) StartScreenShare(withOverlay bool) error {
	screen, err := media.Acquire(c.devices.OpenScreen, c.captureConstraints())
	if err != nil {
		c.notify(core.NoticeWarn, mediaErrorMessage(err))
		return err
	}

	c.mu.Lock()
	prevComposite := c.composite
	prevScreen := c.screenSrc
	c.composite = nil
	c.screenSrc = nil
	c.mu.Unlock()

	// Never leave two redraw loops running.
	if prevComposite != nil {
		prevComposite.Stop()
	}
	if prevScreen != nil {
		prevScreen.Close()
	}

	var outbound *webrtc.TrackLocalStaticSample
	hasCamera := func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.localMedia.HasCamera
	}

	if withOverlay && hasCamera() {
		outbound, err = c.startComposite(screen)
		if err != nil {
			// Compositing failure falls back to the bare screen track.
			log.Warn().Err(err).Str("module", "session").Msg("composite failed, falling back to screen only")
			outbound = nil
		}
	}

	if outbound == nil {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", "meet-screen",
		)
		if err != nil {
			screen.Close()
			return err
		}
		c.mu.Lock()
		c.screenTrack = track
		c.screenSrc = screen
		c.mu.Unlock()
		go c.pumpFrames(c.ctx, screen, track, c.cfg.CompositeFPS, func() bool { return true })
		outbound = track
	}

	attempted, failed := c.mesh.ReplaceOutboundVideoTrack(outbound)
	log.Info().
		Str("module", "session").
		Int("attempted", attempted).
		Int("failed", failed).
		Msg("outbound video switched to screen share")

	c.mu.Lock()
	c.localMedia.ScreenSharing = true
	c.mu.Unlock()
	return c.channel.Send(core.EvStartScreenShare, map[string]any{"from": c.peerID, "on": true})
}

// startComposite builds the PiP session with its own camera handle so
// stopping the share never kills the primary camera feed.
func (c *Controller) startComposite(screen core.FrameSource) (*webrtc.TrackLocalStaticSample, error) {
	overlayCam, err := media.Acquire(c.devices.OpenCamera, c.captureConstraints())
	if err != nil {
		return nil, err
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "meet-composite",
	)
	if err != nil {
		overlayCam.Close()
		return nil, err
	}

	frameDur := time.Second / time.Duration(c.cfg.CompositeFPS)
	comp := compositor.NewSession(screen, overlayCam, compositor.Layout{
		Width:        c.cfg.CompositeW,
		Height:       c.cfg.CompositeH,
		PiPWidth:     c.cfg.PiPWidth,
		PiPHeight:    c.cfg.PiPHeight,
		PiPMargin:    c.cfg.PiPMargin,
		PiPCorner:    c.cfg.PiPCornerSize,
		FPS:          c.cfg.CompositeFPS,
		ReadyTimeout: c.cfg.CompositeReadyTimeout,
	}, c.identity.DisplayName, func() bool {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.localMedia.VideoOn
	}, func(frame *image.RGBA) {
		c.writeFrame(track, frame, frameDur)
	})

	if err := comp.Start(c.ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.compTrack = track
	c.composite = comp
	c.mu.Unlock()
	return track, nil
}

// StopScreenShare returns every link to the camera track and releases
// the capture sources the share owned.
func (c *Controller) StopScreenShare() error {
	c.mu.Lock()
	comp := c.composite
	screen := c.screenSrc
	cameraTrack := c.cameraTrack
	sharing := c.localMedia.ScreenSharing
	c.composite = nil
	c.screenSrc = nil
	c.localMedia.ScreenSharing = false
	c.mu.Unlock()

	if !sharing {
		return nil
	}
	if comp != nil {
		comp.Stop()
	}
	if screen != nil {
		screen.Close()
	}

	if cameraTrack != nil {
		attempted, failed := c.mesh.ReplaceOutboundVideoTrack(cameraTrack)
		log.Info().
			Str("module", "session").
			Int("attempted", attempted).
			Int("failed", failed).
			Msg("outbound video switched back to camera")
	}
	return c.channel.Send(core.EvStopScreenShare, map[string]any{"from": c.peerID, "on": false})
}
