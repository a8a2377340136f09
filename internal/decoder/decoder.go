// Package decoder defines the Media Decoder Engine contract the playback
// controller drives. Engines decode and render; the controller only
// orchestrates instances of them.
package decoder

import (
	"errors"
	"time"
)

// Error codes passed to Listener.OnError. The controller forwards them
// without interpretation.
const (
	ErrorUnknown     = 1
	ErrorServerDied  = 100
	ErrorIO          = -1004
	ErrorMalformed   = -1007
	ErrorUnsupported = -1010
	ErrorTimedOut    = -110
)

// Info codes passed to Listener.OnInfo.
const (
	InfoUnknown        = 1
	InfoRenderingStart = 3
	InfoBufferingStart = 701
	InfoBufferingEnd   = 702
)

var (
	// ErrNotFound is returned by Open when the source does not exist.
	ErrNotFound = errors.New("source not found")
	// ErrUnsupported is returned by Open when no decoder handles the source.
	ErrUnsupported = errors.New("unsupported source")
	// ErrReleased is returned by calls on a released decoder.
	ErrReleased = errors.New("decoder released")
)

// Surface is a render target. A surface is bound to at most one live
// decoder at a time.
type Surface interface {
	Name() string
	// SetFixedSize asks the surface to resize its buffer to the video's
	// natural size. The binding answers asynchronously with a changed
	// notification.
	SetFixedSize(width, height int)
}

// Listener receives notifications for exactly one decoder instance. It is
// bound when the instance is opened and never replaced. Notifications may
// arrive on any goroutine but must be delivered in order per instance, and
// none may follow Reset or Release.
type Listener interface {
	OnPrepared()
	OnVideoSizeChanged(width, height int)
	OnCompletion()
	OnError(what, extra int)
	OnInfo(what, extra int)
}

// Decoder is a single decoding pipeline for one source.
type Decoder interface {
	// SetSurface binds the instance to s; nil unbinds it.
	SetSurface(s Surface) error
	// PrepareAsync starts preparation and returns immediately; completion
	// is reported through Listener.OnPrepared or Listener.OnError.
	PrepareAsync() error
	Start() error
	Pause() error
	IsPlaying() bool
	SeekTo(pos time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	// VideoSize returns the natural size, zero when unknown.
	VideoSize() (width, height int)
	Stop() error
	Reset() error
	Release() error
}

// Engine creates decoder instances. Open fails synchronously when the
// source cannot be opened at all.
type Engine interface {
	Open(source string, l Listener) (Decoder, error)
}
