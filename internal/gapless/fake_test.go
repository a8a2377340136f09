package gapless

import (
	"errors"
	"sync"
	"testing"
	"time"

	"gapless-player/internal/decoder"
	"gapless-player/internal/logging"

	"github.com/stretchr/testify/require"
)

// fakeEngine records every decoder it opens. Tests drive notifications by
// hand through the bound listener.
type fakeEngine struct {
	mu       sync.Mutex
	decoders []*fakeDecoder
	openErr  map[string]error

	// bindings counts live decoders per surface.
	bindings  map[decoder.Surface]int
	violation bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		openErr:  map[string]error{},
		bindings: map[decoder.Surface]int{},
	}
}

func (e *fakeEngine) Open(source string, l decoder.Listener) (decoder.Decoder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if source == "panic" {
		panic("engine blew up")
	}
	if err := e.openErr[source]; err != nil {
		return nil, err
	}
	d := &fakeDecoder{engine: e, source: source, listener: l, width: 1920, height: 1080, duration: 30 * time.Second}
	e.decoders = append(e.decoders, d)
	return d, nil
}

func (e *fakeEngine) opened() []*fakeDecoder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*fakeDecoder(nil), e.decoders...)
}

func (e *fakeEngine) last() *fakeDecoder {
	ds := e.opened()
	if len(ds) == 0 {
		return nil
	}
	return ds[len(ds)-1]
}

func (e *fakeEngine) bind(old, s decoder.Surface) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if old != nil {
		e.bindings[old]--
	}
	if s != nil {
		e.bindings[s]++
		if e.bindings[s] > 1 {
			e.violation = true
		}
	}
}

func (e *fakeEngine) exclusiveViolated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.violation
}

func (e *fakeEngine) boundTo(s decoder.Surface) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bindings[s]
}

type fakeDecoder struct {
	engine   *fakeEngine
	source   string
	listener decoder.Listener

	mu       sync.Mutex
	surface  decoder.Surface
	prepares int
	starts   int
	playing  bool
	released bool
	position time.Duration
	duration time.Duration
	width    int
	height   int
	startErr error
}

func (d *fakeDecoder) SetSurface(s decoder.Surface) error {
	d.mu.Lock()
	old := d.surface
	d.surface = s
	d.mu.Unlock()
	d.engine.bind(old, s)
	return nil
}

func (d *fakeDecoder) PrepareAsync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepares++
	return nil
}

func (d *fakeDecoder) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.startErr != nil {
		return d.startErr
	}
	d.starts++
	d.playing = true
	return nil
}

func (d *fakeDecoder) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return nil
}

func (d *fakeDecoder) IsPlaying() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.playing
}

func (d *fakeDecoder) SeekTo(pos time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.position = pos
	return nil
}

func (d *fakeDecoder) Position() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

func (d *fakeDecoder) Duration() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

func (d *fakeDecoder) VideoSize() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *fakeDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return nil
}

func (d *fakeDecoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = false
	return nil
}

func (d *fakeDecoder) Release() error {
	d.mu.Lock()
	old := d.surface
	d.surface = nil
	d.released = true
	d.playing = false
	d.mu.Unlock()
	if old != nil {
		d.engine.bind(old, nil)
	}
	return nil
}

func (d *fakeDecoder) isReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

func (d *fakeDecoder) boundSurface() decoder.Surface {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surface
}

func (d *fakeDecoder) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// fakeSurface answers SetFixedSize the way a real binding does: with an
// asynchronous changed notification.
type fakeSurface struct {
	name string
	cb   SurfaceCallback

	mu    sync.Mutex
	sizes [][2]int
}

func (s *fakeSurface) Name() string { return s.name }

func (s *fakeSurface) SetFixedSize(width, height int) {
	s.mu.Lock()
	s.sizes = append(s.sizes, [2]int{width, height})
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb.SurfaceChanged(0, width, height)
	}
}

func (s *fakeSurface) AddSurface(cb SurfaceCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

type countingFocus struct {
	mu   sync.Mutex
	held int
	max  int
}

func (f *countingFocus) Request() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held++
	if f.held > f.max {
		f.max = f.held
	}
}

func (f *countingFocus) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held--
}

var errBroken = errors.New("broken")

type harness struct {
	t       *testing.T
	engine  *fakeEngine
	surface *fakeSurface
	focus   *countingFocus
	c       *Controller
	sub     *Subscription
}

// newHarness returns a controller with its surface created at 1920x1080,
// the natural size of every fake decoder, so prepared items start at once.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		engine:  newFakeEngine(),
		surface: &fakeSurface{name: "test"},
		focus:   &countingFocus{},
	}
	h.c = New(h.engine, Options{Name: "test", Logger: logging.Discard(), Focus: h.focus})
	h.sub = h.c.Subscribe()
	h.c.InitView(h.surface)
	h.c.SurfaceCreated(h.surface)
	h.c.SurfaceChanged(0, 1920, 1080)
	h.sync()
	t.Cleanup(h.c.Close)
	return h
}

// sync waits until queued notifications, and the ones they post in turn
// (a resize answered by the surface), have been handled.
func (h *harness) sync() {
	for i := 0; i < 3; i++ {
		h.c.do(func() {})
	}
}

func (h *harness) prepared(d *fakeDecoder) {
	d.listener.OnPrepared()
	h.sync()
}

func (h *harness) completed(d *fakeDecoder) {
	d.listener.OnCompletion()
	h.sync()
}

func (h *harness) inspect(fn func(c *Controller)) {
	h.c.do(func() { fn(h.c) })
}

func (h *harness) requireOpened(n int) []*fakeDecoder {
	h.t.Helper()
	ds := h.engine.opened()
	require.Len(h.t, ds, n)
	return ds
}
