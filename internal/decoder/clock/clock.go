// Package clock is a decoder engine that renders nothing. It probes each
// source for its natural size and duration and then plays it against the
// wall clock, delivering the same notifications a real engine would. Dev
// builds and tests run on it.
package clock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gapless-player/internal/decoder"
	"gapless-player/internal/logging"
	"gapless-player/internal/media"

	"github.com/sirupsen/logrus"
)

// Options configures the engine. Zero values use the defaults.
type Options struct {
	// DefaultDuration is used when the duration cannot be probed, e.g. for
	// remote sources or non-MP4 containers.
	DefaultDuration time.Duration
	// PrepareDelay simulates decoder start-up latency.
	PrepareDelay time.Duration
	Logger       logrus.FieldLogger
	// Probe replaces media.Probe.
	Probe func(path string) (media.Info, error)
}

const defaultDuration = 10 * time.Second

// Engine opens clock decoders.
type Engine struct {
	opts Options
	log  logrus.FieldLogger
}

// New creates a clock engine.
func New(opts Options) *Engine {
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = defaultDuration
	}
	if opts.Probe == nil {
		opts.Probe = media.Probe
	}
	log := opts.Logger
	if log == nil {
		log = logging.For("clock")
	}
	return &Engine{opts: opts, log: log}
}

// Open checks that source is playable and returns an idle decoder for it.
func (e *Engine) Open(source string, l decoder.Listener) (decoder.Decoder, error) {
	if media.Detect(source) == media.Unknown {
		return nil, fmt.Errorf("%s: %w", source, decoder.ErrUnsupported)
	}
	if !media.IsRemote(source) {
		if _, err := os.Stat(source); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", source, decoder.ErrNotFound)
			}
			return nil, fmt.Errorf("stat %s: %w", source, err)
		}
	}
	return &player{
		engine:   e,
		source:   source,
		listener: l,
		log:      e.log.WithField("source", source),
	}, nil
}

type player struct {
	engine   *Engine
	source   string
	listener decoder.Listener
	log      logrus.FieldLogger

	mu        sync.Mutex
	gen       int
	surface   decoder.Surface
	preparing bool
	prepared  bool
	playing   bool
	released  bool
	rendered  bool
	info      media.Info
	offset    time.Duration
	startedAt time.Time
	timer     *time.Timer
}

// current reports whether a callback scheduled at generation gen may still
// notify. Must be called with mu held.
func (p *player) current(gen int) bool {
	return !p.released && p.gen == gen
}

func (p *player) SetSurface(s decoder.Surface) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	p.surface = s
	return nil
}

func (p *player) PrepareAsync() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	if p.preparing || p.prepared {
		return fmt.Errorf("prepare %s: already prepared", p.source)
	}
	p.preparing = true
	gen := p.gen
	go p.prepare(gen)
	return nil
}

func (p *player) prepare(gen int) {
	if d := p.engine.opts.PrepareDelay; d > 0 {
		time.Sleep(d)
	}

	info := media.Info{Type: media.Detect(p.source)}
	var err error
	if !media.IsRemote(p.source) {
		info, err = p.engine.opts.Probe(p.source)
	}
	if info.Duration <= 0 {
		info.Duration = p.engine.opts.DefaultDuration
	}

	p.mu.Lock()
	if !p.current(gen) {
		p.mu.Unlock()
		return
	}
	p.preparing = false
	if err != nil {
		p.mu.Unlock()
		p.log.Warnf("probe failed: %v", err)
		p.listener.OnError(errorCode(err), 0)
		return
	}
	p.info = info
	p.prepared = true
	p.mu.Unlock()

	if info.Width > 0 && info.Height > 0 {
		p.listener.OnVideoSizeChanged(info.Width, info.Height)
	}
	p.listener.OnPrepared()
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, media.ErrUnsupported):
		return decoder.ErrorUnsupported
	case errors.Is(err, fs.ErrNotExist):
		return decoder.ErrorIO
	default:
		return decoder.ErrorMalformed
	}
}

func (p *player) Start() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return decoder.ErrReleased
	}
	if !p.prepared {
		p.mu.Unlock()
		return fmt.Errorf("start %s: not prepared", p.source)
	}
	if p.playing {
		p.mu.Unlock()
		return nil
	}
	if p.offset >= p.info.Duration {
		p.offset = 0
	}
	p.playing = true
	p.startedAt = time.Now()
	p.schedule()
	first := !p.rendered
	p.rendered = true
	p.mu.Unlock()

	if first {
		p.listener.OnInfo(decoder.InfoRenderingStart, 0)
	}
	return nil
}

// schedule arms the completion timer for the remaining time. Must be called
// with mu held while playing.
func (p *player) schedule() {
	if p.timer != nil {
		p.timer.Stop()
	}
	gen := p.gen
	remaining := p.info.Duration - p.offset
	p.timer = time.AfterFunc(remaining, func() { p.complete(gen) })
}

func (p *player) complete(gen int) {
	p.mu.Lock()
	if !p.current(gen) || !p.playing {
		p.mu.Unlock()
		return
	}
	p.playing = false
	p.offset = p.info.Duration
	p.mu.Unlock()

	p.listener.OnCompletion()
}

func (p *player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	if !p.playing {
		return nil
	}
	p.offset = p.position()
	p.playing = false
	p.stopTimer()
	return nil
}

func (p *player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *player) SeekTo(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	if !p.prepared {
		return fmt.Errorf("seek %s: not prepared", p.source)
	}
	pos = max(0, min(pos, p.info.Duration))
	p.offset = pos
	if p.playing {
		p.startedAt = time.Now()
		p.schedule()
	}
	return nil
}

func (p *player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *player) position() time.Duration {
	if !p.playing {
		return p.offset
	}
	return min(p.offset+time.Since(p.startedAt), p.info.Duration)
}

func (p *player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.prepared {
		return -1
	}
	return p.info.Duration
}

func (p *player) VideoSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info.Width, p.info.Height
}

func (p *player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	p.playing = false
	p.prepared = false
	p.offset = 0
	p.stopTimer()
	return nil
}

// Reset returns the decoder to its opened state and suppresses every
// notification scheduled before it.
func (p *player) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return decoder.ErrReleased
	}
	p.reset()
	return nil
}

func (p *player) reset() {
	p.gen++
	p.stopTimer()
	p.playing = false
	p.preparing = false
	p.prepared = false
	p.rendered = false
	p.offset = 0
	p.info = media.Info{}
}

func (p *player) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.reset()
	p.surface = nil
	p.released = true
	return nil
}

func (p *player) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
