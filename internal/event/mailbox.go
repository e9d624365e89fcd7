package event

import (
	"context"
	"sync"
)

// DefaultMailboxSize is the queue depth used when NewMailbox is given a
// non-positive size.
const DefaultMailboxSize = 64

// Mailbox queues events posted from worker goroutines so that the control
// goroutine can publish them on a Bus in arrival order.
type Mailbox struct {
	ch     chan Event
	once   sync.Once
	done   chan struct{}
	notify func()
}

// NewMailbox creates a Mailbox with the given queue depth.
func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &Mailbox{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// OnPost registers a callback invoked after each successful post. Front ends
// use it to wake their own loop. It must be set before workers start posting.
func (m *Mailbox) OnPost(fn func()) {
	m.notify = fn
}

// Post queues a message code.
func (m *Mailbox) Post(ctx context.Context, code Code) bool {
	return m.PostEvent(ctx, NewMessageEvent(code))
}

// PostEvent queues e. It blocks while the queue is full and returns false if
// ctx is done or the mailbox is closed first.
func (m *Mailbox) PostEvent(ctx context.Context, e Event) bool {
	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.ch <- e:
		if m.notify != nil {
			m.notify()
		}
		return true
	case <-ctx.Done():
		return false
	case <-m.done:
		return false
	}
}

// C exposes the queue for select loops.
func (m *Mailbox) C() <-chan Event {
	return m.ch
}

// Pending returns the number of queued events.
func (m *Mailbox) Pending() int {
	return len(m.ch)
}

// Drain publishes every queued event on bus without blocking and reports
// how many were delivered.
func (m *Mailbox) Drain(bus *Bus) int {
	n := 0
	for {
		select {
		case e := <-m.ch:
			bus.Publish(e)
			n++
		default:
			return n
		}
	}
}

// Close stops accepting posts. Queued events remain drainable.
func (m *Mailbox) Close() {
	m.once.Do(func() { close(m.done) })
}
