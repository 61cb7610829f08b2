// SPDX-License-Identifier: MIT

// Package session holds the session record and the triple-indexed registry
// of spec.md §3/§4.5: local-ufrag -> session, remote-address -> session,
// session-id -> session, plus the concurrency discipline required to keep
// all three consistent.
package session

// State is one of the six lifecycle states a session record can occupy
// (spec.md §3).
type State int

// Session lifecycle states.
const (
	Closed State = iota
	New
	Checking
	Connected
	Failed
	Disconnected
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case New:
		return "new"
	case Checking:
		return "checking"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
