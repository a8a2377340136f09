package gapless

// AudioFocus is the exclusive audio output shared with the rest of the
// device. The controller requests it when a decoder takes over output and
// abandons it when that decoder is released.
type AudioFocus interface {
	Request()
	Abandon()
}

type noFocus struct{}

func (noFocus) Request() {}
func (noFocus) Abandon() {}
