package gapless

import "sync"

// mailbox is an unbounded FIFO of closures run by a single goroutine.
// post never blocks, so engines and surfaces may notify from anywhere,
// including from inside a closure the loop is currently running.
type mailbox struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// post enqueues fn. It returns false once the mailbox is closed.
func (m *mailbox) post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting work. Already queued closures still run.
func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run executes closures until the mailbox is closed and drained.
func (m *mailbox) run() {
	defer close(m.done)
	for {
		m.mu.Lock()
		batch := m.queue
		m.queue = nil
		closed := m.closed
		m.mu.Unlock()

		for _, fn := range batch {
			fn()
		}

		if len(batch) == 0 {
			if closed {
				return
			}
			<-m.wake
		}
	}
}
