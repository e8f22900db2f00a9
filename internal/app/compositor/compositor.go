// Package compositor combines the screen capture and the camera into a
// single synthetic video frame stream with a picture-in-picture overlay.
package compositor

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

var (
	ErrSourceNotReady = errors.New("source never became ready")
	ErrAlreadyRunning = errors.New("composite session already running")
)

// Layout positions the camera overlay on the screen frame.
type Layout struct {
	Width, Height int
	PiPWidth      int
	PiPHeight     int
	PiPMargin     int
	PiPCorner     int
	FPS           int

	// ReadyTimeout bounds the wait for the first frame of each source.
	ReadyTimeout time.Duration
}

// Session owns the redraw task for one composite stream. Exactly one
// may run per meeting session; the owner must Stop it before starting
// another, and Stop must release both capture sources.
type Session struct {
	screen core.FrameSource
	camera core.FrameSource

	surface  *Surface
	layout   Layout
	label    string
	cameraOn func() bool
	sink     func(*image.RGBA)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	release sync.Once

	readyTimeout time.Duration
}

func NewSession(screen, camera core.FrameSource, layout Layout, label string, cameraOn func() bool, sink func(*image.RGBA)) *Session {
	if layout.FPS <= 0 {
		layout.FPS = 15
	}
	if layout.ReadyTimeout <= 0 {
		layout.ReadyTimeout = 5 * time.Second
	}
	return &Session{
		screen:       screen,
		camera:       camera,
		surface:      NewSurface(layout.Width, layout.Height),
		layout:       layout,
		label:        label,
		cameraOn:     cameraOn,
		sink:         sink,
		readyTimeout: layout.ReadyTimeout,
	}
}

// Start waits until both sources report a first frame, then runs the
// redraw loop. Starting before both are ready would emit blank frames.
// On failure only the overlay camera is closed: the screen capture
// stays with the caller, which falls back to a screen-only stream.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.started = true
	s.mu.Unlock()

	deadline := time.NewTimer(s.readyTimeout)
	defer deadline.Stop()

	for _, src := range []core.FrameSource{s.screen, s.camera} {
		select {
		case <-src.Ready():
		case <-deadline.C:
			s.camera.Close()
			return ErrSourceNotReady
		case <-ctx.Done():
			s.camera.Close()
			return ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
	log.Info().Str("module", "compositor").Int("fps", s.layout.FPS).Msg("redraw loop started")
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(time.Second / time.Duration(s.layout.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.redraw()
		}
	}
}

func (s *Session) redraw() {
	screenFrame, err := s.screen.Frame()
	if err != nil {
		log.Error().Err(err).Str("module", "compositor").Msg("screen frame")
		return
	}

	s.surface.Clear()
	s.surface.DrawFull(screenFrame)

	if s.cameraOn() {
		camFrame, err := s.camera.Frame()
		if err == nil {
			s.surface.DrawOverlay(camFrame, s.pipRegion(), s.layout.PiPCorner, s.label)
		} else {
			log.Debug().Err(err).Str("module", "compositor").Msg("camera frame skipped")
		}
	}

	if s.sink != nil {
		s.sink(s.surface.Image())
	}
}

func (s *Session) pipRegion() image.Rectangle {
	b := s.surface.Bounds()
	return image.Rect(
		b.Max.X-s.layout.PiPWidth-s.layout.PiPMargin,
		b.Max.Y-s.layout.PiPHeight-s.layout.PiPMargin,
		b.Max.X-s.layout.PiPMargin,
		b.Max.Y-s.layout.PiPMargin,
	)
}

// Stop cancels the redraw task and releases both sources. Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.Release()
	log.Info().Str("module", "compositor").Msg("stopped")
}

// Release closes both capture sources exactly once. Leaving either
// open leaks a live capture device.
func (s *Session) Release() {
	s.release.Do(func() {
		s.screen.Close()
		s.camera.Close()
	})
}

// Running reports whether the redraw loop is active.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
