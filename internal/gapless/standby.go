package gapless

import (
	"time"

	"gapless-player/internal/timetrack"

	"github.com/samber/mo"
)

// prewarm opens the item after the active one on a decoder bound to no
// surface. At most one standby exists or is being prepared at a time.
func (c *Controller) prewarm() {
	if c.standby.IsPresent() || c.warming != nil {
		return
	}
	if c.list == nil || c.active == nil {
		return
	}

	next, ok := c.list.NextIndex(c.active.index)
	if !ok {
		c.exhausted = true
		c.log.Debug("no next item, nothing to pre-warm")
		return
	}

	inst := c.newInstance(c.list.At(next), next)
	log := c.log.WithField("decoder", inst.id).WithField("source", inst.source)

	dec, err := c.engine.Open(inst.source, c.listenerFor(inst))
	if err != nil {
		log.Warnf("pre-warm open failed: %v", err)
		return
	}
	inst.dec = dec
	c.warming = inst

	timetrack.Time("prewarm:" + inst.id)
	if err := dec.PrepareAsync(); err != nil {
		log.Warnf("pre-warm prepare failed: %v", err)
		c.warming = nil
		timetrack.Forget("prewarm:" + inst.id)
		_ = dec.Release()
		return
	}
	log.Debugf("pre-warming item %d", next)
}

func (c *Controller) onStandbyPrepared(inst *instance) {
	timetrack.Time("prewarm:" + inst.id)
	c.warming = nil
	c.standby = mo.Some(inst)
	c.log.WithField("decoder", inst.id).Debugf("item %d ready for swap", inst.index)

	// The active item completed while this one was still preparing.
	if c.current == Completed && c.active != nil {
		c.swap()
	}
}

func (c *Controller) isStandby(inst *instance) bool {
	s, ok := c.standby.Get()
	return ok && s == inst
}

// onStandbyError drops a failed standby. It is not reported while the
// active item is unaffected. Once the active item has completed the stall
// would be permanent, so the failing item is opened on the active slot and
// its error reaches subscribers from there.
func (c *Controller) onStandbyError(inst *instance, what, extra int) {
	c.log.WithField("decoder", inst.id).Warnf("standby error (%d, %d) on item %d", what, extra, inst.index)

	if c.warming == inst {
		c.warming = nil
	}
	if c.isStandby(inst) {
		c.standby = mo.None[*instance]()
	}
	timetrack.Forget("prewarm:" + inst.id)
	_ = inst.dec.Reset()
	_ = inst.dec.Release()

	if c.current == Completed && c.active != nil {
		timetrack.Forget("swap:" + c.active.id)
		c.list.MoveTo(inst.index)
		c.setSource(inst.index, inst.source)
	}
}

// discardStandby releases the standby and any in-flight pre-warm.
func (c *Controller) discardStandby() {
	if c.warming != nil {
		timetrack.Forget("prewarm:" + c.warming.id)
		_ = c.warming.dec.Reset()
		_ = c.warming.dec.Release()
		c.warming = nil
	}
	if s, ok := c.standby.Get(); ok {
		_ = s.dec.Reset()
		_ = s.dec.Release()
		c.standby = mo.None[*instance]()
	}
	c.exhausted = false
}

// swap hands the display over from the completed active decoder to the
// standby one. Without a ready standby playback stalls until it is.
func (c *Controller) swap() {
	retired := c.active
	next, ok := c.standby.Get()
	if !ok {
		switch {
		case c.warming != nil:
			c.log.Info("next item not ready, stalling")
		case c.exhausted:
			timetrack.Forget("swap:" + retired.id)
			c.log.Info("play-list ended")
			c.events.ended(PlaylistEnded{Source: retired.source, Index: retired.index})
		default:
			// The earlier pre-warm failed or never ran.
			c.prewarm()
			switch {
			case c.exhausted:
				timetrack.Forget("swap:" + retired.id)
				c.events.ended(PlaylistEnded{Source: retired.source, Index: retired.index})
			case c.warming == nil:
				// The next item cannot even be opened. Open it on the
				// active slot so the failure is reported.
				timetrack.Forget("swap:" + retired.id)
				if next, ok := c.list.NextIndex(retired.index); ok {
					c.list.MoveTo(next)
					c.setSource(next, c.list.At(next))
				}
			}
		}
		return
	}

	// Unbind before release, release before rebind: only one decoder
	// may be bound to the surface or hold focus at any instant.
	if err := retired.dec.SetSurface(nil); err != nil {
		c.log.WithField("decoder", retired.id).Debugf("unbind: %v", err)
	}
	if err := retired.dec.Stop(); err != nil {
		c.log.WithField("decoder", retired.id).Debugf("stop: %v", err)
	}
	if err := retired.dec.Release(); err != nil {
		c.log.WithField("decoder", retired.id).Debugf("release: %v", err)
	}
	c.focus.Abandon()

	c.active = next
	c.standby = mo.None[*instance]()
	c.setState(Prepared)
	c.index = next.index
	c.source = next.source
	c.list.MoveTo(next.index)
	c.seekWhenPrepared = mo.None[time.Duration]()
	c.videoW, c.videoH = next.dec.VideoSize()
	c.focus.Request()

	if c.target != Paused {
		c.start()
	}
	if c.surface != nil {
		if err := next.dec.SetSurface(c.surface); err != nil {
			c.fail(next, errorCode(err), 0, err)
			return
		}
		if c.videoW != 0 && c.videoH != 0 && (c.videoW != c.surfaceW || c.videoH != c.surfaceH) {
			c.surface.SetFixedSize(c.videoW, c.videoH)
		}
	}

	if elapsed, ok := timetrack.Time("swap:" + retired.id); ok {
		c.log.WithField("decoder", next.id).Debugf("swapped in item %d after %s", next.index, elapsed)
	}
	c.events.item(ItemChange{PreviousIndex: retired.index, Index: next.index, Source: next.source})
	c.prewarm()
}
