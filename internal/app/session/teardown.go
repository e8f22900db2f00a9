package session

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Meet/internal/app/admission"
	"github.com/dkeye/Meet/internal/core"
)

// Teardown is the single exit path for a session: hang-up, navigation
// away, host removal and rejection all end here. The order matters:
// compositor first (it holds live capture devices), then peer links,
// then local sources, then the relay channel. Re-entrant calls are
// no-ops.
func (c *Controller) Teardown() {
	c.teardownOnce.Do(func() {
		log.Info().Str("module", "session").Str("room", string(c.roomID)).Msg("teardown")

		c.mu.Lock()
		comp := c.composite
		screen := c.screenSrc
		camera := c.cameraSrc
		mic := c.micSrc
		timer := c.rejectTimer
		c.composite = nil
		c.screenSrc = nil
		c.mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		if comp != nil {
			comp.Stop()
		}
		if screen != nil {
			screen.Close()
		}

		c.mesh.DestroyAll()

		if camera != nil {
			camera.Close()
		}
		if mic != nil {
			mic.Close()
		}

		c.channel.Close()
		if c.cancel != nil {
			c.cancel()
		}
		if c.onLeave != nil {
			c.onLeave()
		}
	})
}

// Leave is the user-triggered hang-up.
func (c *Controller) Leave() {
	c.Teardown()
}

// onRejected runs when admission ends in rejection. Teardown is
// deferred so the rejection message stays readable.
func (c *Controller) onRejected(kind admission.RejectKind, reason string) {
	if kind == admission.RejectByPolicy {
		c.notify(core.NoticeError, "you cannot join this meeting: "+reason)
	} else {
		c.notify(core.NoticeError, reason)
	}

	delay := c.cfg.RejectionDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}

	c.mu.Lock()
	if c.rejectTimer == nil {
		c.rejectTimer = time.AfterFunc(delay, c.Teardown)
	}
	c.mu.Unlock()
}
