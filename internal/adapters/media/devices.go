// Package media acquires local capture devices and maps platform
// failures to a small set of user-facing error kinds.
package media

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/core"
)

// ErrorKind keys the message shown to the user when acquisition fails.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "permission-denied"
	KindDeviceInUse      ErrorKind = "device-in-use"
	KindOverconstrained  ErrorKind = "overconstrained"
	KindNotFound         ErrorKind = "not-found"
	KindUnknown          ErrorKind = "unknown"
)

// AcquireError wraps a device failure with its user-facing kind.
type AcquireError struct {
	Kind ErrorKind
	Err  error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("media acquire (%s): %v", e.Kind, e.Err)
}

func (e *AcquireError) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to unknown.
func KindOf(err error) ErrorKind {
	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Constraints describe the requested capture format.
type Constraints struct {
	Width  int
	Height int
	FPS    int
}

// Relaxed drops resolution and framerate demands; used for the
// automatic retry after an overconstrained failure.
func (c Constraints) Relaxed() Constraints {
	return Constraints{Width: 640, Height: 360, FPS: 15}
}

// DeviceManager opens capture sources. Implementations are platform
// specific; tests and the headless client inject synthetic ones.
type DeviceManager interface {
	OpenCamera(c Constraints) (core.FrameSource, error)
	OpenScreen(c Constraints) (core.FrameSource, error)
	OpenMicrophone() (core.FrameSource, error)
}

// Acquire opens a source via open and retries once with relaxed
// constraints, but only for the overconstrained kind. Every other kind
// is terminal for the attempted action.
func Acquire(open func(Constraints) (core.FrameSource, error), c Constraints) (core.FrameSource, error) {
	src, err := open(c)
	if err == nil {
		return src, nil
	}
	if KindOf(err) != KindOverconstrained {
		return nil, err
	}
	log.Warn().Str("module", "media").Msg("overconstrained, retrying with relaxed constraints")
	return open(c.Relaxed())
}
