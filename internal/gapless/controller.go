// Package gapless plays a play-list back-to-back without visible gaps by
// driving two decoder instances: an active one bound to the display surface
// and a standby one preparing the next item in the background. When the
// active item completes the standby is swapped in.
//
// All state belongs to a single owner goroutine. Public methods and engine
// or surface notifications are queued onto it, so the controller is safe
// for concurrent use and never returns or panics with a decoder failure:
// failures surface as the Error state and an ErrorEvent.
package gapless

import (
	"errors"
	"fmt"
	"time"

	"gapless-player/internal/decoder"
	"gapless-player/internal/logging"
	"gapless-player/internal/playlist"
	"gapless-player/internal/timetrack"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/sirupsen/logrus"
)

// Options configures a Controller. All fields are optional.
type Options struct {
	// Name identifies the controller in logs, e.g. a zone id.
	Name   string
	Logger logrus.FieldLogger
	Focus  AudioFocus
}

// instance is one decoder opened for one play-list item.
type instance struct {
	id     string
	source string
	index  int
	dec    decoder.Decoder
}

// Status is a point-in-time snapshot of a controller.
type Status struct {
	State    State
	Target   State
	Source   string
	Index    int
	Position time.Duration
	Duration time.Duration
	// StandbyReady is true when the next item is prepared and waiting.
	StandbyReady bool
	// Warming is true while the next item is being prepared.
	Warming bool
}

// Controller is the gapless playback controller.
type Controller struct {
	engine decoder.Engine
	focus  AudioFocus
	log    logrus.FieldLogger
	mb     *mailbox

	// Everything below is owned by the mailbox goroutine.
	events  hub
	current State
	target  State

	active  *instance
	standby mo.Option[*instance]
	warming *instance

	list      *playlist.PlayList
	source    string
	index     int
	exhausted bool

	surface            decoder.Surface
	surfaceW, surfaceH int
	videoW, videoH     int

	seekWhenPrepared mo.Option[time.Duration]
}

// New creates a controller and starts its owner goroutine. Call Close to
// release decoders and stop it.
func New(engine decoder.Engine, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logging.For("controller")
	}
	if opts.Name != "" {
		log = log.WithField("zone", opts.Name)
	}
	focus := opts.Focus
	if focus == nil {
		focus = noFocus{}
	}

	c := &Controller{
		engine:  engine,
		focus:   focus,
		log:     log,
		mb:      newMailbox(),
		current: Idle,
		target:  Idle,
	}
	go c.mb.run()
	return c
}

// do runs fn on the owner goroutine and waits for it. It returns false if
// the controller is closed.
func (c *Controller) do(fn func()) bool {
	done := make(chan struct{})
	ok := c.mb.post(func() {
		defer close(done)
		c.guard(fn)
	})
	if !ok {
		return false
	}
	<-done
	return true
}

// notify queues fn without waiting. Engine and surface notifications use it.
func (c *Controller) notify(fn func(c *Controller)) {
	c.mb.post(func() { c.guard(func() { fn(c) }) })
}

// guard keeps a misbehaving decoder from killing the owner goroutine.
func (c *Controller) guard(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("recovered in controller loop")
			c.fail(c.active, decoder.ErrorUnknown, 0, fmt.Errorf("panic: %v", r))
		}
	}()
	fn()
}

// InitView attaches the controller to a container that provides its
// display surface, and resets the state machine.
func (c *Controller) InitView(container Container) {
	c.do(func() {
		c.setState(Idle)
		c.target = Idle
	})
	container.AddSurface(c)
}

// SetPlayList replaces the play-list, moves the cursor to the first item and
// opens it. An empty list is ignored.
func (c *Controller) SetPlayList(items []string, looping bool) {
	c.do(func() {
		if len(items) == 0 {
			c.log.Debug("empty play-list ignored")
			return
		}
		c.discardStandby()
		c.list = playlist.New(items, looping)
		c.setSource(0, c.list.At(0))
	})
}

// Start plays the active item, or records the intent to play once it is
// prepared.
func (c *Controller) Start() {
	c.do(func() {
		if c.start() {
			c.prewarm()
		}
	})
}

// Pause pauses playback, or records the intent to stay paused.
func (c *Controller) Pause() {
	c.do(c.pause)
}

// Stop tears down both decoders and resets current and target to Idle. The
// source is kept so Resume can reopen it.
func (c *Controller) Stop() {
	c.do(c.stop)
}

// Suspend releases decoder resources but keeps the source and target state.
func (c *Controller) Suspend() {
	c.do(func() {
		c.releaseActive(false)
		c.discardStandby()
	})
}

// Resume reopens the current source after Suspend.
func (c *Controller) Resume() {
	c.do(c.openVideo)
}

// SeekTo seeks the active item, or remembers pos until it is prepared.
func (c *Controller) SeekTo(pos time.Duration) {
	c.do(func() { c.seekTo(pos) })
}

// Duration returns the active item's duration, or -1 when nothing is
// playback-capable.
func (c *Controller) Duration() time.Duration {
	d := time.Duration(-1)
	c.do(func() {
		if c.playbackCapable() {
			d = c.active.dec.Duration()
		}
	})
	return d
}

// Position returns the playback position of the active item.
func (c *Controller) Position() time.Duration {
	var pos time.Duration
	c.do(func() {
		if c.playbackCapable() {
			pos = c.active.dec.Position()
		}
	})
	return pos
}

// IsPlaying reports whether the active decoder is playing.
func (c *Controller) IsPlaying() bool {
	var playing bool
	c.do(func() { playing = c.playbackCapable() && c.active.dec.IsPlaying() })
	return playing
}

// State returns the current state.
func (c *Controller) State() State {
	s := Idle
	c.do(func() { s = c.current })
	return s
}

// TargetState returns the state the last caller intent asked for.
func (c *Controller) TargetState() State {
	s := Idle
	c.do(func() { s = c.target })
	return s
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	var st Status
	c.do(func() {
		st = Status{
			State:        c.current,
			Target:       c.target,
			Source:       c.source,
			Index:        c.index,
			Duration:     -1,
			StandbyReady: c.standby.IsPresent(),
			Warming:      c.warming != nil,
		}
		if c.playbackCapable() {
			st.Position = c.active.dec.Position()
			st.Duration = c.active.dec.Duration()
		}
	})
	return st
}

// Subscribe returns a new event subscription.
func (c *Controller) Subscribe() *Subscription {
	var s *Subscription
	if !c.do(func() { s = c.events.add() }) {
		s = newSubscription()
		s.close()
	}
	return s
}

// Unsubscribe closes s and stops delivering events to it.
func (c *Controller) Unsubscribe(s *Subscription) {
	c.do(func() { c.events.remove(s) })
}

// Close stops playback, releases every decoder, closes all subscriptions
// and stops the owner goroutine. Calls made after Close are no-ops.
func (c *Controller) Close() {
	c.do(func() {
		c.stop()
		c.surface = nil
		c.events.closeAll()
	})
	c.mb.close()
	<-c.mb.done
}

// --- owner goroutine internals ---

func (c *Controller) setSource(index int, source string) {
	c.index = index
	c.source = source
	c.seekWhenPrepared = mo.None[time.Duration]()
	c.openVideo()
}

func (c *Controller) playbackCapable() bool {
	return c.active != nil && c.current.PlaybackCapable()
}

func (c *Controller) setState(to State) bool {
	from := c.current
	if from == to {
		return true
	}
	if !from.CanTransition(to) {
		c.log.Warnf("refusing state transition %s -> %s", from, to)
		return false
	}
	c.current = to
	c.log.Debugf("state %s -> %s", from, to)
	c.events.state(StateChange{Previous: from, Current: to})
	return true
}

func (c *Controller) newInstance(source string, index int) *instance {
	return &instance{
		id:     uuid.NewString()[:8],
		source: source,
		index:  index,
	}
}

// openVideo opens the current source on a new active decoder bound to the
// surface. Without a source or a surface it does nothing; the next
// play-list or surface event retries.
func (c *Controller) openVideo() {
	if c.source == "" || c.surface == nil {
		c.log.Debug("not ready to open: waiting for source and surface")
		return
	}

	// The target state is kept: Start may already have been called.
	c.releaseActive(false)
	c.discardStandby()
	c.setState(Idle)
	c.videoW, c.videoH = 0, 0

	inst := c.newInstance(c.source, c.index)
	log := c.log.WithField("decoder", inst.id).WithField("source", inst.source)

	dec, err := c.engine.Open(inst.source, c.listenerFor(inst))
	if err != nil {
		c.openFailed(inst, err)
		return
	}
	inst.dec = dec
	c.active = inst
	c.focus.Request()

	if err := dec.SetSurface(c.surface); err != nil {
		c.openFailed(inst, err)
		return
	}
	timetrack.Time("prepare:" + inst.id)
	if err := dec.PrepareAsync(); err != nil {
		timetrack.Forget("prepare:" + inst.id)
		c.openFailed(inst, err)
		return
	}

	c.setState(Preparing)
	log.Infof("opening item %d", inst.index)
}

func (c *Controller) openFailed(inst *instance, err error) {
	c.log.WithField("source", inst.source).Warnf("unable to open content: %v", err)
	if c.active == inst {
		c.active = nil
		c.focus.Abandon()
	}
	if inst.dec != nil {
		_ = inst.dec.Reset()
		_ = inst.dec.Release()
	}
	c.fail(inst, errorCode(err), 0, err)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, decoder.ErrNotFound):
		return decoder.ErrorIO
	case errors.Is(err, decoder.ErrUnsupported):
		return decoder.ErrorUnsupported
	default:
		return decoder.ErrorUnknown
	}
}

// fail forces the Error state and reports it. inst may be nil.
func (c *Controller) fail(inst *instance, what, extra int, err error) {
	source, index := c.source, c.index
	if inst != nil {
		source, index = inst.source, inst.index
	}
	c.log.WithField("source", source).Errorf("playback error (%d, %d)", what, extra)

	c.setState(Error)
	c.target = Error
	c.events.error(ErrorEvent{Source: source, Index: index, What: what, Extra: extra, Err: err})
}

// releaseActive tears down the active decoder in any state.
func (c *Controller) releaseActive(clearTarget bool) {
	inst := c.active
	if inst == nil {
		return
	}
	c.active = nil
	if err := inst.dec.Reset(); err != nil {
		c.log.WithField("decoder", inst.id).Debugf("reset: %v", err)
	}
	if err := inst.dec.Release(); err != nil {
		c.log.WithField("decoder", inst.id).Debugf("release: %v", err)
	}
	timetrack.Forget("prepare:" + inst.id)

	c.setState(Idle)
	if clearTarget {
		c.target = Idle
	}
	c.focus.Abandon()
}

func (c *Controller) stop() {
	c.discardStandby()
	c.target = Idle
	inst := c.active
	if inst == nil {
		return
	}
	c.active = nil
	if err := inst.dec.Stop(); err != nil {
		c.log.WithField("decoder", inst.id).Debugf("stop: %v", err)
	}
	if err := inst.dec.Release(); err != nil {
		c.log.WithField("decoder", inst.id).Debugf("release: %v", err)
	}
	c.setState(Idle)
	c.focus.Abandon()
	c.log.Info("stopped")
}

// start moves a playback-capable decoder to Playing and always sets the
// target; a failing Start overwrites it with Error. It returns true on a Prepared → Playing transition, which is
// when the next item should start warming.
func (c *Controller) start() bool {
	c.target = Playing
	if !c.playbackCapable() {
		return false
	}
	from := c.current
	if err := c.active.dec.Start(); err != nil {
		c.fail(c.active, decoder.ErrorUnknown, 0, err)
		return false
	}
	c.setState(Playing)
	return from == Prepared
}

func (c *Controller) pause() {
	if c.playbackCapable() && c.active.dec.IsPlaying() {
		if err := c.active.dec.Pause(); err != nil {
			c.log.Warnf("pause: %v", err)
		} else {
			c.setState(Paused)
		}
	}
	c.target = Paused
}

func (c *Controller) seekTo(pos time.Duration) {
	if !c.playbackCapable() {
		c.seekWhenPrepared = mo.Some(pos)
		return
	}
	if err := c.active.dec.SeekTo(pos); err != nil {
		c.log.Warnf("seek to %s: %v", pos, err)
	}
	c.seekWhenPrepared = mo.None[time.Duration]()
}

// onPrepared handles the active decoder's prepared notification.
func (c *Controller) onPrepared(inst *instance) {
	if !c.setState(Prepared) {
		return
	}
	timetrack.Time("prepare:" + inst.id)
	c.videoW, c.videoH = inst.dec.VideoSize()
	c.events.prepared(PreparedEvent{
		Source: inst.source,
		Index:  inst.index,
		Width:  c.videoW,
		Height: c.videoH,
	})

	if pos, ok := c.seekWhenPrepared.Get(); ok {
		c.seekTo(pos)
	}

	if c.videoW == 0 || c.videoH == 0 {
		// Size unknown, start anyway; it may be reported later.
		if c.target == Playing && c.start() {
			c.prewarm()
		}
		return
	}
	if c.surfaceW == c.videoW && c.surfaceH == c.videoH {
		// No resize will follow, so no changed callback either.
		if c.target == Playing && c.start() {
			c.prewarm()
		}
		return
	}
	// Start from SurfaceChanged once the surface reports the video size.
	if c.surface != nil {
		c.surface.SetFixedSize(c.videoW, c.videoH)
	}
}

func (c *Controller) onVideoSizeChanged(width, height int) {
	c.videoW, c.videoH = width, height
	if width != 0 && height != 0 && c.surface != nil {
		c.surface.SetFixedSize(width, height)
	}
}

func (c *Controller) onCompletion(inst *instance) {
	// Completion is only meaningful after Playing or Paused.
	if !c.setState(Completed) {
		c.log.WithField("decoder", inst.id).Debugf("completion in %s dropped", c.current)
		return
	}
	c.log.WithField("decoder", inst.id).Infof("item %d completed", inst.index)
	// The target is kept so the swapped-in item starts unless paused.
	c.events.completed(CompletionEvent{Source: inst.source, Index: inst.index})
	timetrack.Time("swap:" + inst.id)
	c.swap()
}
