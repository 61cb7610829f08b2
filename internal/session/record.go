// SPDX-License-Identifier: MIT

package session

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Description exposes the two fields the ICE port needs out of an SDP
// session description (spec.md §3, §6). The canonical implementation wraps
// github.com/pion/sdp/v3.SessionDescription, mirroring how
// arzzra-soft_phone and dkeye-Voice read ice-ufrag/ice-pwd out of a parsed
// offer; this package only depends on the interface so it never has to
// import an SDP parser.
type Description interface {
	ICEUfrag() string
	ICEPwd() string
}

// Sender is the minimum a bound transport handle must support for the send
// path (spec.md §4.8). It is satisfied by the top-level PhysicalPort.
type Sender interface {
	SendTo(addr net.Addr, data []byte) (int, error)
	Network() string
}

// Record is one session: a peer connection identified by SessionID inside
// the server and by ufrag on the wire.
type Record struct {
	SessionID int64
	OfferSDP  Description
	PeerSDP   Description

	LocalUfrag  string
	RemoteUfrag string

	// ExpireAfter is fixed at creation time (read from the publisher
	// configuration, spec.md §3); ExpireDeadline is refreshed on every
	// accepted binding request.
	ExpireAfter time.Duration

	// ChannelNumber is assigned once, lazily, the first time this session's
	// bound socket turns out to be TCP (the built-in TURN relay case) so
	// the send path can wrap outbound data in a channel-data header
	// (spec.md §4.8).
	ChannelNumber uint16

	// ConnID is a slot for the TCP connection this session is bound to.
	// Nothing in this module assigns or reads it, so it stays uuid.Nil; the
	// ingress dispatcher finds reframers by the connection id passed to
	// Port.OnData, not through the record.
	ConnID uuid.UUID

	mu             sync.Mutex
	state          State
	remoteSocket   Sender
	remoteAddr     net.Addr
	expireDeadline time.Time
}

// NewRecord creates a session record in state New, matching add_session's
// contract (spec.md §3 lifecycle).
func NewRecord(sessionID int64, offer, peer Description, expireAfter time.Duration) *Record {
	return &Record{
		SessionID:   sessionID,
		OfferSDP:    offer,
		PeerSDP:     peer,
		LocalUfrag:  offer.ICEUfrag(),
		RemoteUfrag: peer.ICEUfrag(),
		ExpireAfter: expireAfter,
		state:       New,

		expireDeadline: time.Now().Add(expireAfter),
	}
}

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// SetState transitions the record and returns the previous state. The swap
// is made under the record's own mutex. Callers do not all hold a registry
// lock when they call it: Promote, MarkConnected and EvictFailed call it
// with no registry lock held, while the record is still in the tables.
func (r *Record) SetState(s State) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.state
	r.state = s

	return prev
}

// RemoteAddr returns the bound peer transport address, if any.
func (r *Record) RemoteAddr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remoteAddr
}

// RemoteSocket returns the bound transport handle, if any.
func (r *Record) RemoteSocket() Sender {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remoteSocket
}

// Bind sets the remote socket and address atomically, the step that turns a
// pending session into one with a concrete binding (spec.md §4.6 step 6).
func (r *Record) Bind(sock Sender, addr net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remoteSocket = sock
	r.remoteAddr = addr
}

// ExpireDeadline returns the current expiry deadline.
func (r *Record) ExpireDeadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.expireDeadline
}

// RefreshDeadline pushes the expiry deadline to now+ExpireAfter, per every
// accepted binding request (spec.md §3).
func (r *Record) RefreshDeadline(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireDeadline = now.Add(r.ExpireAfter)
}
