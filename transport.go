// SPDX-License-Identifier: MIT

package iceport

import (
	"net"

	"github.com/AirenSoft/ice-port/internal/session"
)

// PhysicalPort is the socket abstraction the transport layer provides for
// each bound UDP or TCP listening endpoint. The ICE port never creates a
// PhysicalPort itself; Listen only asks the caller-supplied factory for one
// per distinct (network, address) pair derived from the candidate list.
type PhysicalPort interface {
	SendTo(addr net.Addr, data []byte) (int, error)
	LocalAddr() net.Addr
	Network() string // "udp" or "tcp"
	Close() error
}

// PhysicalPortFactory binds a new listening endpoint. The returned
// PhysicalPort must start delivering on_connected/on_data/on_disconnected
// callbacks to the Port's OnConnected/OnData/OnDisconnected before Listen
// for the corresponding candidate returns, mirroring how the physical-port
// collaborator is described in spec §6.
type PhysicalPortFactory func(network string, addr *net.UDPAddr) (PhysicalPort, error)

// Candidate is one entry of the ICE candidate list consumed during Listen.
// Duplicate ports across candidates are coalesced into a single bound
// endpoint.
type Candidate struct {
	Transport          string // "udp" or "tcp"
	IP                 net.IP
	PortStart, PortEnd int
}

// SessionDescription exposes the three SDP fields the ICE port needs. The
// canonical production implementation wraps github.com/pion/sdp/v3's
// SessionDescription; tests and the demo binary can satisfy this with a
// plain struct.
type SessionDescription interface {
	ICEUfrag() string
	ICEPwd() string
	Candidates() []Candidate
}

// State mirrors internal/session.State so callers never need to import the
// internal package to compare against it.
type State = session.State

// The session lifecycle states, re-exported for external observers.
const (
	Closed       = session.Closed
	StateNew     = session.New
	Checking     = session.Checking
	Connected    = session.Connected
	Failed       = session.Failed
	Disconnected = session.Disconnected
)

// SessionInfo is the read-only snapshot handed to Observer callbacks; it is
// never a live handle onto the underlying record, so observers cannot
// accidentally mutate registry state from within a callback.
type SessionInfo struct {
	SessionID   int64
	LocalUfrag  string
	RemoteUfrag string
	State       State
	RemoteAddr  net.Addr
}

// Observer is the capability pair every registered observer implements
// (spec §6, §9). Both methods are invoked synchronously and outside of any
// registry lock; implementations must return quickly.
//
// SessionDescription satisfies internal/session.Description structurally
// (it is a superset), so records can be built directly from the interface
// values passed to AddSession without an adapter type.
type Observer interface {
	OnStateChanged(port PhysicalPort, info SessionInfo, newState State)
	OnDataReceived(port PhysicalPort, info SessionInfo, data []byte)
}
