package host

import (
	"sync"

	"gapless-player/internal/gapless"
	"gapless-player/internal/template"
)

// zoneSurface is the display surface of one zone. The engine places the
// video itself, so the surface only tracks visibility and buffer size and
// reports them to the controller.
type zoneSurface struct {
	name string
	rect template.Rect

	mu      sync.Mutex
	cb      gapless.SurfaceCallback
	visible bool
	width   int
	height  int
}

func newZoneSurface(name string, rect template.Rect) *zoneSurface {
	return &zoneSurface{name: name, rect: rect}
}

func (s *zoneSurface) Name() string { return s.name }

// AddSurface implements gapless.Container.
func (s *zoneSurface) AddSurface(cb gapless.SurfaceCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

// SetFixedSize resizes the buffer to the video's natural size; the engine
// scales it into the zone.
func (s *zoneSurface) SetFixedSize(width, height int) {
	s.mu.Lock()
	s.width, s.height = width, height
	cb, visible := s.cb, s.visible
	s.mu.Unlock()

	if cb != nil && visible {
		cb.SurfaceChanged(0, width, height)
	}
}

// Show makes the surface available at the zone's pixel size.
func (s *zoneSurface) Show() {
	s.mu.Lock()
	if s.visible {
		s.mu.Unlock()
		return
	}
	s.visible = true
	s.width, s.height = s.rect.Width, s.rect.Height
	cb := s.cb
	s.mu.Unlock()

	if cb != nil {
		cb.SurfaceCreated(s)
		cb.SurfaceChanged(0, s.rect.Width, s.rect.Height)
	}
}

// Hide destroys the surface. It returns once no decoder renders to it.
func (s *zoneSurface) Hide() {
	s.mu.Lock()
	if !s.visible {
		s.mu.Unlock()
		return
	}
	s.visible = false
	cb := s.cb
	s.mu.Unlock()

	if cb != nil {
		cb.SurfaceDestroyed()
	}
}

func (s *zoneSurface) size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}
