package vlc

import "gapless-player/internal/decoder"

// buffering folds libVLC's stream of buffering events into one start/end
// pair. libVLC repeats MediaPlayerBuffering while the cache fills and has
// no "done" event; playback time advancing again ends the stall.
type buffering struct {
	active bool
}

// filling returns InfoBufferingStart for the first buffering event of a
// stall and 0 for the repeats.
func (b *buffering) filling() int {
	if b.active {
		return 0
	}
	b.active = true
	return decoder.InfoBufferingStart
}

// advanced returns InfoBufferingEnd when time moves during a stall.
func (b *buffering) advanced() int {
	if !b.active {
		return 0
	}
	b.active = false
	return decoder.InfoBufferingEnd
}
