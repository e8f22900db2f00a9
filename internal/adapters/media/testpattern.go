package media

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
)

// PatternSource synthesizes frames; it stands in for real capture in
// the headless client and in tests.
type PatternSource struct {
	mu     sync.Mutex
	frame  *image.RGBA
	ready  chan struct{}
	cancel context.CancelFunc
	closed bool
}

// NewPatternSource starts generating a moving color-band pattern of the
// given size. The caller owns the source and must Close it.
func NewPatternSource(w, h, fps int, tone color.RGBA) *PatternSource {
	if fps <= 0 {
		fps = 15
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &PatternSource{
		ready:  make(chan struct{}),
		cancel: cancel,
	}
	go s.run(ctx, w, h, fps, tone)
	return s
}

func (s *PatternSource) run(ctx context.Context, w, h, fps int, tone color.RGBA) {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	shift := 0
	first := true
	for {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := uint8((x + shift) * 255 / w)
				img.SetRGBA(x, y, color.RGBA{
					R: tone.R / 2, G: v, B: tone.B, A: 0xff,
				})
			}
		}
		s.mu.Lock()
		s.frame = img
		s.mu.Unlock()
		if first {
			close(s.ready)
			first = false
		}
		shift += 4

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *PatternSource) Ready() <-chan struct{} { return s.ready }

func (s *PatternSource) Frame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return nil, &AcquireError{Kind: KindNotFound, Err: context.Canceled}
	}
	return s.frame, nil
}

func (s *PatternSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
}

// PatternDevices is a DeviceManager producing synthetic sources.
type PatternDevices struct {
	CameraTone color.RGBA
	ScreenTone color.RGBA
}

func (d PatternDevices) OpenCamera(c Constraints) (core.FrameSource, error) {
	return NewPatternSource(c.Width, c.Height, c.FPS, d.CameraTone), nil
}

func (d PatternDevices) OpenScreen(c Constraints) (core.FrameSource, error) {
	return NewPatternSource(c.Width, c.Height, c.FPS, d.ScreenTone), nil
}

func (d PatternDevices) OpenMicrophone() (core.FrameSource, error) {
	// Audio is carried as-is; a silent one-frame source satisfies the interface.
	return NewPatternSource(2, 2, 1, color.RGBA{}), nil
}
