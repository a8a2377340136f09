package gapless

const eventBufferSize = 16

// PreparedEvent is emitted when the active decoder finishes preparing.
type PreparedEvent struct {
	Source string
	Index  int
	Width  int
	Height int
}

// CompletionEvent is emitted when the active item plays to its end.
type CompletionEvent struct {
	Source string
	Index  int
}

// ErrorEvent is emitted when the active decoder fails, either while the
// source is opened or at runtime. What/Extra come from the engine as-is.
type ErrorEvent struct {
	Source string
	Index  int
	What   int
	Extra  int
	Err    error
}

// InfoEvent forwards an informational engine notification.
type InfoEvent struct {
	Source string
	What   int
	Extra  int
}

// StateChange is emitted on every change of the current state.
type StateChange struct {
	Previous State
	Current  State
}

// ItemChange is emitted when a standby decoder is swapped in.
type ItemChange struct {
	PreviousIndex int
	Index         int
	Source        string
}

// PlaylistEnded is emitted when the last item of a non-looping play-list
// completes and there is nothing left to swap in.
type PlaylistEnded struct {
	Source string
	Index  int
}

// Subscription provides event channels for a subscriber. Sends never block;
// events are dropped when a subscriber falls behind by more than the
// buffer size.
type Subscription struct {
	Prepared      <-chan PreparedEvent
	Completed     <-chan CompletionEvent
	Errors        <-chan ErrorEvent
	Info          <-chan InfoEvent
	StateChanged  <-chan StateChange
	ItemChanged   <-chan ItemChange
	PlaylistEnded <-chan PlaylistEnded
	Done          <-chan struct{}

	preparedCh  chan PreparedEvent
	completedCh chan CompletionEvent
	errorCh     chan ErrorEvent
	infoCh      chan InfoEvent
	stateCh     chan StateChange
	itemCh      chan ItemChange
	endedCh     chan PlaylistEnded
	doneCh      chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		preparedCh:  make(chan PreparedEvent, eventBufferSize),
		completedCh: make(chan CompletionEvent, eventBufferSize),
		errorCh:     make(chan ErrorEvent, eventBufferSize),
		infoCh:      make(chan InfoEvent, eventBufferSize),
		stateCh:     make(chan StateChange, eventBufferSize),
		itemCh:      make(chan ItemChange, eventBufferSize),
		endedCh:     make(chan PlaylistEnded, eventBufferSize),
		doneCh:      make(chan struct{}),
	}
	s.Prepared = s.preparedCh
	s.Completed = s.completedCh
	s.Errors = s.errorCh
	s.Info = s.infoCh
	s.StateChanged = s.stateCh
	s.ItemChanged = s.itemCh
	s.PlaylistEnded = s.endedCh
	s.Done = s.doneCh
	return s
}

func (s *Subscription) close() { close(s.doneCh) }

func send[T any](ch chan T, e T) {
	select {
	case ch <- e:
	default:
	}
}

// hub fans events out to subscribers. Only the owner goroutine touches it.
type hub struct {
	subs []*Subscription
}

func (h *hub) add() *Subscription {
	s := newSubscription()
	h.subs = append(h.subs, s)
	return s
}

func (h *hub) remove(s *Subscription) {
	for i, sub := range h.subs {
		if sub == s {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			s.close()
			return
		}
	}
}

func (h *hub) closeAll() {
	for _, s := range h.subs {
		s.close()
	}
	h.subs = nil
}

func (h *hub) prepared(e PreparedEvent) {
	for _, s := range h.subs {
		send(s.preparedCh, e)
	}
}

func (h *hub) completed(e CompletionEvent) {
	for _, s := range h.subs {
		send(s.completedCh, e)
	}
}

func (h *hub) error(e ErrorEvent) {
	for _, s := range h.subs {
		send(s.errorCh, e)
	}
}

func (h *hub) info(e InfoEvent) {
	for _, s := range h.subs {
		send(s.infoCh, e)
	}
}

func (h *hub) state(e StateChange) {
	for _, s := range h.subs {
		send(s.stateCh, e)
	}
}

func (h *hub) item(e ItemChange) {
	for _, s := range h.subs {
		send(s.itemCh, e)
	}
}

func (h *hub) ended(e PlaylistEnded) {
	for _, s := range h.subs {
		send(s.endedCh, e)
	}
}
