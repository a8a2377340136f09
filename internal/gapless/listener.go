package gapless

// instanceListener is the decoder.Listener bound to one instance when it is
// opened. Every notification is queued onto the owner goroutine and only
// then routed by comparing the instance against the controller's slots, so
// a retired or discarded decoder cannot touch controller state.
type instanceListener struct {
	c    *Controller
	inst *instance
}

func (c *Controller) listenerFor(inst *instance) *instanceListener {
	return &instanceListener{c: c, inst: inst}
}

func (l *instanceListener) OnPrepared() {
	l.c.notify(func(c *Controller) {
		switch {
		case c.active == l.inst:
			c.onPrepared(l.inst)
		case c.warming == l.inst:
			c.onStandbyPrepared(l.inst)
		default:
			c.dropped(l.inst, "prepared")
		}
	})
}

func (l *instanceListener) OnVideoSizeChanged(width, height int) {
	l.c.notify(func(c *Controller) {
		if c.active != l.inst {
			c.dropped(l.inst, "size-changed")
			return
		}
		c.onVideoSizeChanged(width, height)
	})
}

func (l *instanceListener) OnCompletion() {
	l.c.notify(func(c *Controller) {
		if c.active != l.inst {
			c.dropped(l.inst, "completion")
			return
		}
		c.onCompletion(l.inst)
	})
}

func (l *instanceListener) OnError(what, extra int) {
	l.c.notify(func(c *Controller) {
		switch {
		case c.active == l.inst:
			c.fail(l.inst, what, extra, nil)
		case c.warming == l.inst || c.isStandby(l.inst):
			c.onStandbyError(l.inst, what, extra)
		default:
			c.dropped(l.inst, "error")
		}
	})
}

func (l *instanceListener) OnInfo(what, extra int) {
	l.c.notify(func(c *Controller) {
		if c.active != l.inst {
			c.dropped(l.inst, "info")
			return
		}
		c.events.info(InfoEvent{Source: l.inst.source, What: what, Extra: extra})
	})
}

func (c *Controller) dropped(inst *instance, kind string) {
	c.log.WithField("decoder", inst.id).Debugf("dropped %s from inactive decoder", kind)
}
