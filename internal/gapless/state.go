package gapless

import "github.com/samber/lo"

// State is the lifecycle state of the active decoder.
//
//	          openVideo            prepared
//	 Idle ─────────────▶ Preparing ─────────▶ Prepared
//	                                            │ start
//	                          pause             ▼
//	             Paused ◀──────────────────── Playing ──▶ Completed
//	                │          start            ▲  completion  │
//	                └───────────────────────────┘              │ swap
//	                                                            ▼
//	                                                         Prepared
//
// Any state may fall to Error on an engine error and to Idle on
// release/stop.
type State int

const (
	Error State = iota - 1
	Idle
	Preparing
	Prepared
	Playing
	Paused
	Completed
)

func (s State) String() string {
	switch s {
	case Error:
		return "Error"
	case Idle:
		return "Idle"
	case Preparing:
		return "Preparing"
	case Prepared:
		return "Prepared"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

var transitions = map[State][]State{
	Idle:      {Preparing, Error},
	Preparing: {Prepared, Error, Idle},
	Prepared:  {Playing, Error, Idle},
	Playing:   {Paused, Completed, Error, Idle},
	Paused:    {Playing, Completed, Error, Idle},
	Completed: {Prepared, Playing, Error, Idle},
	Error:     {Idle, Error},
}

// CanTransition reports whether the state machine permits s → to.
// Staying in the same state is always permitted.
func (s State) CanTransition(to State) bool {
	if s == to {
		return true
	}
	return lo.Contains(transitions[s], to)
}

// PlaybackCapable reports whether a live decoder in state s can be started,
// paused, sought or queried.
func (s State) PlaybackCapable() bool {
	return s != Error && s != Idle && s != Preparing
}
