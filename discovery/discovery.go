// Package discovery defines the event contract between the (external)
// node-discovery table and the host's scheduler: only the event stream
// is consumed here, not the discovery protocol itself.
package discovery

import "github.com/veriumnet/meshhost/peer"

// Kind distinguishes the two events the discovery table emits.
type Kind int

const (
	NodeAdded Kind = iota
	NodeRemoved
)

// Event is one discovery-table notification.
type Event struct {
	Kind Kind
	Node peer.Node
}

// Source is the interface a real discovery-table implementation
// satisfies. Host only ever pumps events from it and never reaches
// into its internals.
type Source interface {
	// Events returns a channel of discovery notifications. The
	// channel is closed when the source itself shuts down.
	Events() <-chan Event
	// Close stops the discovery table.
	Close()
}
