// Package host runs a layout: one gapless controller per template zone,
// each with its own surface and play-list. It forwards lifecycle calls to
// every zone and decides what to do when a zone's playback fails.
package host

import (
	"fmt"
	"sync"
	"time"

	"gapless-player/internal/decoder"
	"gapless-player/internal/gapless"
	"gapless-player/internal/logging"
	"gapless-player/internal/template"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// EngineFactory opens the decoder engine for one zone.
type EngineFactory func(z template.Zone, rect template.Rect) (decoder.Engine, error)

// Options configures a Host.
type Options struct {
	ScreenWidth  int
	ScreenHeight int
	// Looping is the default for zones that do not set it.
	Looping   bool
	NewEngine EngineFactory
	Logger    logrus.FieldLogger
	// RetryDelay paces recovery after a zone error. Zero means 500ms.
	RetryDelay time.Duration
}

// ZoneStatus is a zone's playback snapshot.
type ZoneStatus struct {
	ID    string
	Items int
	gapless.Status
}

// Host coordinates the zone players of one template.
type Host struct {
	zones []*ZonePlayer
	log   logrus.FieldLogger
}

// ZonePlayer owns one zone's controller and surface.
type ZonePlayer struct {
	zone    template.Zone
	looping bool
	retry   time.Duration
	ctrl    *gapless.Controller
	surface *zoneSurface
	sub     *gapless.Subscription
	log     logrus.FieldLogger
	done    chan struct{}

	mu      sync.Mutex
	items   []string // play-list as scanned
	queued  []string // play-list as handed to the controller
	playing bool
	stopped bool
}

// New creates a controller per zone, bottom-most zone first.
func New(tmpl *template.Template, opts Options) (*Host, error) {
	log := opts.Logger
	if log == nil {
		log = logging.For("host")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}

	h := &Host{log: log}
	for _, z := range tmpl.ByZindex() {
		rect := z.Pixels(opts.ScreenWidth, opts.ScreenHeight)
		engine, err := opts.NewEngine(z, rect)
		if err != nil {
			h.Release()
			return nil, fmt.Errorf("engine for zone %s: %w", z.ID, err)
		}

		zlog := log.WithField("zone", z.ID)
		zp := &ZonePlayer{
			zone:    z,
			looping: lo.FromPtrOr(z.Looping, opts.Looping),
			retry:   opts.RetryDelay,
			ctrl:    gapless.New(engine, gapless.Options{Name: z.ID, Logger: log}),
			surface: newZoneSurface(z.ID, rect),
			log:     zlog,
			done:    make(chan struct{}),
		}
		zp.ctrl.InitView(zp.surface)
		zp.sub = zp.ctrl.Subscribe()
		go zp.watch()

		h.zones = append(h.zones, zp)
		zlog.Infof("zone initialized (%d%%x%d%% at %d%%,%d%% = %dx%d px)",
			z.Width, z.Height, z.X, z.Y, rect.Width, rect.Height)
	}

	h.log.Infof("%d zone(s) ready", len(h.zones))
	return h, nil
}

func (h *Host) zone(id string) (*ZonePlayer, bool) {
	return lo.Find(h.zones, func(zp *ZonePlayer) bool { return zp.zone.ID == id })
}

// SetPlaylist replaces a zone's play-list.
func (h *Host) SetPlaylist(zoneID string, files []string) {
	zp, ok := h.zone(zoneID)
	if !ok {
		h.log.Warnf("zone %q not found", zoneID)
		return
	}
	zp.setPlaylist(files)
}

// SetPlaylistAllZones sets the same play-list on every zone.
func (h *Host) SetPlaylistAllZones(files []string) {
	for _, zp := range h.zones {
		zp.setPlaylist(files)
	}
}

// Play shows every zone surface and starts playback.
func (h *Host) Play() {
	for _, zp := range h.zones {
		zp.play()
	}
}

// Stop stops every zone. Play starts them again from the first item.
func (h *Host) Stop() {
	h.log.Info("stopping all zones")
	for _, zp := range h.zones {
		zp.stop()
	}
}

// Suspend releases decoder resources in every zone, keeping positions in
// the play-lists.
func (h *Host) Suspend() {
	for _, zp := range h.zones {
		zp.ctrl.Suspend()
	}
}

// Resume reopens every zone's current item after Suspend.
func (h *Host) Resume() {
	for _, zp := range h.zones {
		zp.ctrl.Resume()
	}
}

// Release closes every controller. The host cannot be used afterwards.
func (h *Host) Release() {
	for _, zp := range h.zones {
		zp.release()
	}
	h.log.Info("all zones released")
}

// Zones returns the zone ids, bottom-most first.
func (h *Host) Zones() []string {
	return lo.Map(h.zones, func(zp *ZonePlayer, _ int) string { return zp.zone.ID })
}

// Status returns a snapshot of every zone.
func (h *Host) Status() []ZoneStatus {
	return lo.Map(h.zones, func(zp *ZonePlayer, _ int) ZoneStatus {
		zp.mu.Lock()
		n := len(zp.items)
		zp.mu.Unlock()
		return ZoneStatus{ID: zp.zone.ID, Items: n, Status: zp.ctrl.Status()}
	})
}

// --- ZonePlayer internals ---

func (zp *ZonePlayer) setPlaylist(files []string) {
	zp.mu.Lock()
	zp.items = append([]string(nil), files...)
	zp.queued = zp.items
	playing := zp.playing
	zp.mu.Unlock()

	zp.log.Infof("playlist updated: %d files", len(files))
	if len(files) == 0 {
		zp.log.Info("no content, waiting")
		zp.ctrl.Stop()
		return
	}
	zp.ctrl.SetPlayList(files, zp.looping)
	if playing {
		zp.ctrl.Start()
	}
}

func (zp *ZonePlayer) play() {
	zp.mu.Lock()
	zp.playing = true
	rewind := zp.stopped && len(zp.items) > 0
	zp.stopped = false
	zp.queued = zp.items
	items := zp.items
	zp.mu.Unlock()

	zp.surface.Show()
	if rewind {
		zp.ctrl.SetPlayList(items, zp.looping)
	}
	zp.ctrl.Start()
}

func (zp *ZonePlayer) stop() {
	zp.mu.Lock()
	zp.playing = false
	zp.stopped = true
	zp.mu.Unlock()

	zp.ctrl.Stop()
}

func (zp *ZonePlayer) release() {
	zp.surface.Hide()
	zp.ctrl.Close()
	<-zp.done
}

// watch consumes controller events until the controller closes.
func (zp *ZonePlayer) watch() {
	defer close(zp.done)
	for {
		select {
		case <-zp.sub.Done:
			return
		case e := <-zp.sub.Errors:
			zp.skip(e)
		case e := <-zp.sub.ItemChanged:
			zp.log.Debugf("now playing %d: %s", e.Index, e.Source)
		case e := <-zp.sub.PlaylistEnded:
			zp.log.Infof("playlist ended on %s", e.Source)
		case <-zp.sub.Prepared:
		case <-zp.sub.Completed:
		case <-zp.sub.Info:
		case <-zp.sub.StateChanged:
		}
	}
}

// skip moves past the failing item: the controller gets the play-list
// again, starting after it. A looping list keeps the item at its end, so a
// single-item list is simply retried.
func (zp *ZonePlayer) skip(e gapless.ErrorEvent) {
	zp.log.Warnf("playback error on %s (%d, %d): %v", e.Source, e.What, e.Extra, e.Err)

	select {
	case <-time.After(zp.retry):
	case <-zp.sub.Done:
		return
	}

	zp.mu.Lock()
	queued := zp.queued
	if e.Index < 0 || e.Index >= len(queued) || queued[e.Index] != e.Source {
		// The play-list changed since the error.
		zp.mu.Unlock()
		return
	}
	next := append([]string(nil), queued[e.Index+1:]...)
	if zp.looping {
		next = append(next, queued[:e.Index+1]...)
	}
	zp.queued = next
	playing := zp.playing
	zp.mu.Unlock()

	if len(next) == 0 {
		zp.log.Warnf("nothing left to play after %s", e.Source)
		return
	}
	zp.log.Infof("skipping %s", e.Source)
	zp.ctrl.SetPlayList(next, zp.looping)
	if playing {
		zp.ctrl.Start()
	}
}
