package compositor

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	ready  chan struct{}
	frame  *image.RGBA
	closed int
}

func newFakeSource(ready bool) *fakeSource {
	s := &fakeSource{
		ready: make(chan struct{}),
		frame: image.NewRGBA(image.Rect(0, 0, 32, 24)),
	}
	if ready {
		close(s.ready)
	}
	return s
}

func (s *fakeSource) Ready() <-chan struct{} { return s.ready }

func (s *fakeSource) Frame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, nil
}

func (s *fakeSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSource) closedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testLayout() Layout {
	return Layout{Width: 64, Height: 48, PiPWidth: 16, PiPHeight: 12, PiPMargin: 2, PiPCorner: 3, FPS: 60}
}

func TestCompositeProducesFrames(t *testing.T) {
	screen := newFakeSource(true)
	camera := newFakeSource(true)

	var mu sync.Mutex
	frames := 0
	s := NewSession(screen, camera, testLayout(), "Ada", func() bool { return true }, func(*image.RGBA) {
		mu.Lock()
		frames++
		mu.Unlock()
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return frames > 2
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
}

func TestSecondStartIsRejected(t *testing.T) {
	s := NewSession(newFakeSource(true), newFakeSource(true), testLayout(), "", func() bool { return true }, nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
}

func TestStartFailsWhenSourceNeverReady(t *testing.T) {
	screen := newFakeSource(true)
	camera := newFakeSource(false) // never reports a frame
	layout := testLayout()
	layout.ReadyTimeout = 20 * time.Millisecond
	s := NewSession(screen, camera, layout, "", func() bool { return true }, nil)

	assert.ErrorIs(t, s.Start(context.Background()), ErrSourceNotReady)
	assert.Equal(t, 1, camera.closedCount(), "failed start releases the overlay camera")
	assert.Zero(t, screen.closedCount(), "the screen capture stays with the caller for the fallback")
}

func TestStopReleasesSourcesExactlyOnce(t *testing.T) {
	screen := newFakeSource(true)
	camera := newFakeSource(true)
	s := NewSession(screen, camera, testLayout(), "", func() bool { return true }, nil)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Stop() // teardown and hang-up can race into a double stop

	assert.Equal(t, 1, screen.closedCount())
	assert.Equal(t, 1, camera.closedCount())
}

func TestCameraOverlaySkippedWhenDisabled(t *testing.T) {
	screen := newFakeSource(true)
	camera := newFakeSource(true)

	cameraOn := false
	done := make(chan struct{})
	var once sync.Once
	s := NewSession(screen, camera, testLayout(), "Ada", func() bool { return cameraOn }, func(*image.RGBA) {
		once.Do(func() { close(done) })
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("no frame produced")
	}
}

func TestRoundedMaskFallback(t *testing.T) {
	// Radius larger than the region cannot build a mask.
	_, err := roundedMask(10, 10, 9)
	assert.Error(t, err)

	m, err := roundedMask(16, 12, 3)
	require.NoError(t, err)
	assert.Zero(t, m.AlphaAt(0, 0).A, "corner pixel is clipped")
	assert.EqualValues(t, 0xff, m.AlphaAt(8, 6).A, "center pixel is kept")
}

func TestDrawOverlayDegradesToPlainRect(t *testing.T) {
	s := NewSurface(64, 48)
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))

	// Oversized corner radius: must fall back, not fail.
	assert.NotPanics(t, func() {
		s.DrawOverlay(src, image.Rect(40, 30, 60, 44), 100, "Ada")
	})
}
