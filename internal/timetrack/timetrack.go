// Package timetrack measures the time between two marks with the same tag.
// It is a debugging aid: the first Time call for a tag records the moment,
// the second logs the elapsed time and forgets the tag.
package timetrack

import (
	"sync"
	"time"

	"gapless-player/internal/logging"
)

var (
	mu       sync.Mutex
	trackers = map[string]time.Time{}
	now      = time.Now
)

// Time marks tag. On the second call for the same tag it returns the time
// since the first and true.
func Time(tag string) (time.Duration, bool) {
	t := now()

	mu.Lock()
	start, ok := trackers[tag]
	if ok {
		delete(trackers, tag)
	} else {
		trackers[tag] = t
	}
	mu.Unlock()

	if !ok {
		return 0, false
	}
	elapsed := t.Sub(start)
	logging.For("timetrack").Debugf("%s : %d ms", tag, elapsed.Milliseconds())
	return elapsed, true
}

// Forget drops a pending mark, e.g. when the second event will never come.
func Forget(tag string) {
	mu.Lock()
	delete(trackers, tag)
	mu.Unlock()
}

// Pending returns the number of open marks.
func Pending() int {
	mu.Lock()
	defer mu.Unlock()
	return len(trackers)
}
