//go:build linux && arm64

package vlc

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"gapless-player/internal/decoder"
	"gapless-player/internal/logging"
	"gapless-player/internal/media"

	libvlc "github.com/adrg/libvlc-go/v3"
	"github.com/sirupsen/logrus"
)

var (
	initOnce sync.Once
	initErr  error
)

// DefaultArgs are the libVLC flags for the Raspberry Pi 5: MMAL decode and
// output straight to DRM/KMS, generous caching, and no frame dropping.
func DefaultArgs() []string {
	return []string{
		"--vout=mmal_vout",
		"--codec=mmal_decoder",
		"--no-xlib",

		"--no-osd",
		"--no-dbus",
		"--no-video-title-show",

		"--aout=alsa",

		"--file-caching=5000",
		"--network-caching=3000",
		"--live-caching=3000",
		"--clock-jitter=0",
		"--clock-synchro=0",

		"--no-drop-late-frames",
		"--no-skip-frames",
		"--avcodec-skiploopfilter=0",
		"--deinterlace=0",

		"--image-duration=" + strconv.Itoa(media.DefaultImageDuration),

		"--quiet",
	}
}

// Rect is a zone's position on screen in pixels.
type Rect struct {
	X, Y, Width, Height int
}

// Options configures an engine.
type Options struct {
	// Args are appended to DefaultArgs on the first Init. libVLC is
	// initialised once per process, so later engines cannot change them.
	Args []string
	// Rect places this engine's video. Zero means fullscreen.
	Rect   Rect
	Logger logrus.FieldLogger
}

// Engine opens libVLC decoders for one zone.
type Engine struct {
	opts Options
	log  logrus.FieldLogger
}

// New initialises libVLC on first use and returns an engine.
func New(opts Options) (*Engine, error) {
	initOnce.Do(func() {
		initErr = libvlc.Init(append(DefaultArgs(), opts.Args...)...)
	})
	if initErr != nil {
		return nil, fmt.Errorf("libvlc init failed: %w", initErr)
	}
	log := opts.Logger
	if log == nil {
		log = logging.For("vlc")
	}
	return &Engine{opts: opts, log: log}, nil
}

// Shutdown releases libVLC. No engine may be used afterwards.
func Shutdown() {
	if initErr == nil {
		libvlc.Release()
	}
}

// mediaOptions are per-item libVLC options placing the video in the zone.
func (e *Engine) mediaOptions() []string {
	r := e.opts.Rect
	if r.Width == 0 || r.Height == 0 {
		return []string{":fullscreen"}
	}
	return []string{
		":video-x=" + strconv.Itoa(r.X),
		":video-y=" + strconv.Itoa(r.Y),
		":width=" + strconv.Itoa(r.Width),
		":height=" + strconv.Itoa(r.Height),
	}
}

// Open creates a libVLC player for source. Nothing is decoded until
// PrepareAsync.
func (e *Engine) Open(source string, l decoder.Listener) (decoder.Decoder, error) {
	if media.Detect(source) == media.Unknown {
		return nil, fmt.Errorf("%s: %w", source, decoder.ErrUnsupported)
	}
	if !media.IsRemote(source) {
		if _, err := os.Stat(source); errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", source, decoder.ErrNotFound)
		}
	}

	p, err := libvlc.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("player creation failed: %w", err)
	}

	var m *libvlc.Media
	if media.IsRemote(source) {
		m, err = p.LoadMediaFromURL(source)
	} else {
		m, err = p.LoadMediaFromPath(source)
	}
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if err := m.AddOptions(e.mediaOptions()...); err != nil {
		e.log.WithField("source", source).Warnf("media options: %v", err)
	}

	d := &vlcDecoder{
		source:   source,
		listener: l,
		player:   p,
		media:    m,
		log:      e.log.WithField("source", source),
	}
	if err := d.attach(); err != nil {
		d.Release()
		return nil, err
	}
	return d, nil
}

type vlcDecoder struct {
	source   string
	listener decoder.Listener
	log      logrus.FieldLogger

	mu        sync.Mutex
	player    *libvlc.Player
	media     *libvlc.Media
	playerEv  []libvlc.EventID
	mediaEv   []libvlc.EventID
	preparing bool
	buffer    buffering
	prepared  bool
	released  bool
	width     int
	height    int
}

// attach subscribes to libVLC events. Callbacks run on libVLC threads and
// must not call back into libVLC: they hand the event to the listener or,
// for parsing, to a goroutine of their own.
func (d *vlcDecoder) attach() error {
	pm, err := d.player.EventManager()
	if err != nil {
		return fmt.Errorf("player events: %w", err)
	}
	for _, ev := range []libvlc.Event{
		libvlc.MediaPlayerEndReached,
		libvlc.MediaPlayerEncounteredError,
		libvlc.MediaPlayerVout,
		libvlc.MediaPlayerBuffering,
		libvlc.MediaPlayerTimeChanged,
	} {
		id, err := pm.Attach(ev, d.onPlayerEvent, nil)
		if err != nil {
			return fmt.Errorf("attach player event: %w", err)
		}
		d.playerEv = append(d.playerEv, id)
	}

	mm, err := d.media.EventManager()
	if err != nil {
		return fmt.Errorf("media events: %w", err)
	}
	id, err := mm.Attach(libvlc.MediaParsedChanged, d.onParsed, nil)
	if err != nil {
		return fmt.Errorf("attach media event: %w", err)
	}
	d.mediaEv = append(d.mediaEv, id)
	return nil
}

func (d *vlcDecoder) live() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.released
}

func (d *vlcDecoder) onPlayerEvent(ev libvlc.Event, _ interface{}) {
	if !d.live() {
		return
	}
	switch ev {
	case libvlc.MediaPlayerEndReached:
		d.listener.OnCompletion()
	case libvlc.MediaPlayerEncounteredError:
		d.listener.OnError(decoder.ErrorUnknown, 0)
	case libvlc.MediaPlayerVout:
		d.listener.OnInfo(decoder.InfoRenderingStart, 0)
	case libvlc.MediaPlayerBuffering:
		d.info(d.buffer.filling)
	case libvlc.MediaPlayerTimeChanged:
		d.info(d.buffer.advanced)
	}
}

func (d *vlcDecoder) info(next func() int) {
	d.mu.Lock()
	what := next()
	d.mu.Unlock()
	if what != 0 {
		d.listener.OnInfo(what, 0)
	}
}

func (d *vlcDecoder) onParsed(libvlc.Event, interface{}) {
	go d.finishPrepare()
}

// finishPrepare reads the parse result outside the libVLC event thread.
func (d *vlcDecoder) finishPrepare() {
	d.mu.Lock()
	if d.released || !d.preparing {
		d.mu.Unlock()
		return
	}
	status, err := d.media.ParseStatus()
	d.preparing = false
	if err != nil || status != libvlc.MediaParseDone {
		d.mu.Unlock()
		d.log.Warnf("parse failed: status %v, %v", status, err)
		d.listener.OnError(decoder.ErrorMalformed, int(status))
		return
	}
	d.prepared = true
	w, h := d.width, d.height
	d.mu.Unlock()

	if w > 0 && h > 0 {
		d.listener.OnVideoSizeChanged(w, h)
	}
	d.listener.OnPrepared()
}

// SetSurface binds the player to s. Surfaces that expose an X11 window
// receive the video; otherwise libVLC places it from the media options.
func (d *vlcDecoder) SetSurface(s decoder.Surface) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	if xw, ok := s.(interface{ XWindow() uint32 }); ok && xw.XWindow() != 0 {
		return d.player.SetXWindow(xw.XWindow())
	}
	return nil
}

func (d *vlcDecoder) PrepareAsync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	if d.preparing || d.prepared {
		return fmt.Errorf("prepare %s: already prepared", d.source)
	}
	// libVLC reports no size until a vout exists; read it from the headers.
	if !media.IsRemote(d.source) {
		if info, err := media.Probe(d.source); err == nil {
			d.width, d.height = info.Width, info.Height
		}
	}
	d.preparing = true
	opts := libvlc.MediaParseLocal
	if media.IsRemote(d.source) {
		opts |= libvlc.MediaParseNetwork
	}
	if err := d.media.ParseWithOptions(-1, opts); err != nil {
		d.preparing = false
		return fmt.Errorf("parse %s: %w", d.source, err)
	}
	return nil
}

func (d *vlcDecoder) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	if d.player.IsPlaying() {
		return nil
	}
	if err := d.player.Play(); err != nil {
		return fmt.Errorf("play %s: %w", d.source, err)
	}
	return nil
}

func (d *vlcDecoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	return d.player.SetPause(true)
}

func (d *vlcDecoder) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.released && d.player.IsPlaying()
}

func (d *vlcDecoder) SeekTo(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	return d.player.SetMediaTime(int(pos.Milliseconds()))
}

func (d *vlcDecoder) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return 0
	}
	ms, err := d.player.MediaTime()
	if err != nil || ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (d *vlcDecoder) Duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released || !d.prepared {
		return -1
	}
	if media.Detect(d.source) == media.Image {
		return media.DefaultImageDuration * time.Second
	}
	dur, err := d.media.Duration()
	if err != nil || dur < 0 {
		return -1
	}
	return dur
}

func (d *vlcDecoder) VideoSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *vlcDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	d.prepared = false
	d.buffer = buffering{}
	return d.player.Stop()
}

func (d *vlcDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return decoder.ErrReleased
	}
	d.preparing = false
	d.prepared = false
	d.buffer = buffering{}
	return d.player.Stop()
}

// Release detaches every event before freeing libVLC objects, so no
// notification follows it.
func (d *vlcDecoder) Release() error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return nil
	}
	d.released = true
	d.mu.Unlock()

	if pm, err := d.player.EventManager(); err == nil {
		pm.Detach(d.playerEv...)
	}
	if d.media != nil {
		if mm, err := d.media.EventManager(); err == nil {
			mm.Detach(d.mediaEv...)
		}
	}

	_ = d.player.Stop()
	if d.media != nil {
		d.media.Release()
	}
	if err := d.player.Release(); err != nil {
		return fmt.Errorf("release %s: %w", d.source, err)
	}
	d.log.Debug("released")
	return nil
}
