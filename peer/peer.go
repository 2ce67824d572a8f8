package peer

import (
	"sync"
	"time"
)

// Peer is the relationship record for a known remote node. It survives
// across sessions: a Peer with no live session is simply offline. The
// live-session weak reference itself is held by the session registry
// (package session), keyed by node id, rather than on Peer directly —
// that is the only way to give Host, which owns both, a single,
// non-circular import graph while still letting a Peer outlive its
// Session.
type Peer struct {
	Node

	mu             sync.Mutex
	LastConnected  time.Time
	LastAttempted  time.Time
	FailedAttempts int
	LastDisconnect DisconnectReason
	Score          int64
	Rating         int64
	Trusted        bool
}

// New returns a Peer for the given node with no session and zero stats.
func New(n Node) *Peer {
	return &Peer{Node: n}
}

// RecordDialSuccess updates bookkeeping after a successful outbound
// connect.
func (p *Peer) RecordDialSuccess(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastConnected = at
	p.LastAttempted = at
	p.FailedAttempts = 0
}

// RecordDialFailure updates bookkeeping after a failed outbound
// connect.
func (p *Peer) RecordDialFailure(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastAttempted = at
	p.FailedAttempts++
	p.LastDisconnect = TCPError
}

// Stats is a snapshot of a peer's bookkeeping fields, safe to read
// without holding Peer's lock.
type Stats struct {
	LastConnected  time.Time
	LastAttempted  time.Time
	FailedAttempts int
	LastDisconnect DisconnectReason
	Score          int64
	Rating         int64
	Trusted        bool
}

// Snapshot returns the current stats.
func (p *Peer) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		LastConnected:  p.LastConnected,
		LastAttempted:  p.LastAttempted,
		FailedAttempts: p.FailedAttempts,
		LastDisconnect: p.LastDisconnect,
		Score:          p.Score,
		Rating:         p.Rating,
		Trusted:        p.Trusted,
	}
}

// AddScore adds delta to the peer's cumulative score.
func (p *Peer) AddScore(delta int64) {
	p.mu.Lock()
	p.Score += delta
	p.mu.Unlock()
}

// SetRating replaces the peer's transient rating.
func (p *Peer) SetRating(r int64) {
	p.mu.Lock()
	p.Rating = r
	p.mu.Unlock()
}

// RestoreStats overwrites every stat field at once, used when
// repopulating a Peer from a persisted record rather than from live
// dial/session activity.
func (p *Peer) RestoreStats(s Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastConnected = s.LastConnected
	p.LastAttempted = s.LastAttempted
	p.FailedAttempts = s.FailedAttempts
	p.LastDisconnect = s.LastDisconnect
	p.Score = s.Score
	p.Rating = s.Rating
	p.Trusted = s.Trusted
}

// SetTrusted marks or unmarks this peer as trusted.
func (p *Peer) SetTrusted(t bool) {
	p.mu.Lock()
	p.Trusted = t
	p.mu.Unlock()
}

// SetLastDisconnect records the reason the most recent session ended.
func (p *Peer) SetLastDisconnect(r DisconnectReason) {
	p.mu.Lock()
	p.LastDisconnect = r
	p.mu.Unlock()
}
