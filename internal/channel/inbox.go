package channel

import (
	"context"
	"sync"
)

// Inbox is the buffered incoming queue of an adapter. Producers deliver
// through Deliver and the adapter closes it once with Close; a delivery
// racing Close is dropped instead of sending on a closed channel.
type Inbox struct {
	ch     chan *Message
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewInbox creates an inbox buffering up to size messages.
func NewInbox(size int) *Inbox {
	return &Inbox{
		ch:   make(chan *Message, size),
		done: make(chan struct{}),
	}
}

// Deliver queues msg. It reports false when the inbox is closed, or was
// closed or ctx was cancelled while waiting for buffer space.
func (i *Inbox) Deliver(ctx context.Context, msg *Message) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return false
	}
	select {
	case i.ch <- msg:
		return true
	case <-i.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close closes the channel returned by C. Safe to call more than once.
func (i *Inbox) Close() {
	i.once.Do(func() {
		// release producers blocked on a full buffer before taking the lock
		close(i.done)
		i.mu.Lock()
		i.closed = true
		close(i.ch)
		i.mu.Unlock()
	})
}

// Closed reports whether Close has been called.
func (i *Inbox) Closed() bool {
	select {
	case <-i.done:
		return true
	default:
		return false
	}
}

// C returns the receive side of the inbox.
func (i *Inbox) C() <-chan *Message {
	return i.ch
}
