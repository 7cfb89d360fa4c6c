package session

import (
	"sync"

	"github.com/rocketscienceinc/tictactoe-arena/internal/protocol"
)

// Outbox is the coordinator's side of a connection worker.
// Deliver must never block; returning false counts as a failed send.
type Outbox interface {
	Deliver(notification protocol.Notification) bool
	Close()
}

// Mailbox is a bounded Outbox drained by a connection worker's writer.
type Mailbox struct {
	mu     sync.Mutex
	ch     chan protocol.Notification
	closed bool
}

func NewMailbox(size int) *Mailbox {
	return &Mailbox{
		ch: make(chan protocol.Notification, size),
	}
}

func (that *Mailbox) Deliver(notification protocol.Notification) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.ch <- notification:
		return true
	default:
		return false
	}
}

// Close stops delivery; pending notifications can still be drained.
func (that *Mailbox) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.closed {
		that.closed = true
		close(that.ch)
	}
}

// Notifications is closed after Close once everything queued has been read.
func (that *Mailbox) Notifications() <-chan protocol.Notification {
	return that.ch
}
