package gapless

import "gapless-player/internal/decoder"

// SurfaceCallback receives display surface events. Controller implements it.
type SurfaceCallback interface {
	SurfaceCreated(s decoder.Surface)
	SurfaceChanged(format, width, height int)
	SurfaceDestroyed()
}

// Container hosts the display surface and reports its events to the
// callbacks added to it.
type Container interface {
	AddSurface(cb SurfaceCallback)
}

// SurfaceCreated records s and opens the pending source, if any.
func (c *Controller) SurfaceCreated(s decoder.Surface) {
	c.notify(func(c *Controller) {
		c.log.WithField("surface", s.Name()).Debug("surface created")
		c.surface = s
		c.openVideo()
	})
}

// SurfaceChanged records the new size. It is the deferred start path: a
// prepared item waiting for the surface to match its natural size starts
// here.
func (c *Controller) SurfaceChanged(format, width, height int) {
	c.notify(func(c *Controller) {
		c.surfaceW, c.surfaceH = width, height

		if c.active == nil || c.current != Prepared || c.target != Playing {
			return
		}
		if c.videoW != width || c.videoH != height {
			return
		}
		if pos, ok := c.seekWhenPrepared.Get(); ok {
			c.seekTo(pos)
		}
		if c.start() {
			c.prewarm()
		}
	})
}

// SurfaceDestroyed releases every decoder but keeps the source and the
// target state, so the next SurfaceCreated resumes playback. It waits until
// no decoder references the surface any more.
func (c *Controller) SurfaceDestroyed() {
	c.do(func() {
		c.log.Debug("surface destroyed")
		c.surface = nil
		c.surfaceW, c.surfaceH = 0, 0
		c.releaseActive(false)
		c.discardStandby()
	})
}
