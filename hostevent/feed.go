// Package hostevent provides a small non-blocking publish/subscribe
// feed for the host's own lifecycle notifications, kept separate from
// logging so external observers (metrics exporters, RPC glue) can
// subscribe without parsing log lines.
package hostevent

import (
	"sync"

	"github.com/veriumnet/meshhost/peer"
)

// Kind distinguishes the notifications the feed carries.
type Kind int

const (
	PeerConnected Kind = iota
	PeerDisconnected
	HandshakeCompleted
)

// Notification is one feed record.
type Notification struct {
	Kind   Kind
	NodeID peer.ID
	Reason peer.DisconnectReason // only meaningful for PeerDisconnected
}

// Feed is a non-blocking, drop-oldest publish/subscribe channel set.
type Feed struct {
	mu   sync.Mutex
	subs map[chan Notification]struct{}
}

// NewFeed returns an empty Feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[chan Notification]struct{})}
}

// Subscribe returns a channel that receives future notifications, and
// an unsubscribe function. The channel is buffered; a slow subscriber
// loses its oldest unread notification rather than blocking Send.
func (f *Feed) Subscribe(buffer int) (ch <-chan Notification, unsubscribe func()) {
	c := make(chan Notification, buffer)
	f.mu.Lock()
	f.subs[c] = struct{}{}
	f.mu.Unlock()
	return c, func() {
		f.mu.Lock()
		delete(f.subs, c)
		f.mu.Unlock()
		close(c)
	}
}

// Send publishes n to every current subscriber without blocking.
func (f *Feed) Send(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.subs {
		select {
		case c <- n:
		default:
			// Drop the oldest queued notification to make room; a
			// slow subscriber must never block Host.
			select {
			case <-c:
			default:
			}
			select {
			case c <- n:
			default:
			}
		}
	}
}
