// SPDX-License-Identifier: MIT

package iceport

import "errors"

var (
	// ErrNoCandidates is returned by Listen when called with an empty
	// candidate list.
	ErrNoCandidates = errors.New("iceport: no candidates supplied to Listen")

	// ErrAlreadyListening is returned by Listen if called more than once on
	// the same Port.
	ErrAlreadyListening = errors.New("iceport: Listen already called on this port")

	// errUnsupportedCandidateTransport is returned when a Candidate names a
	// transport other than "udp" or "tcp".
	errUnsupportedCandidateTransport = errors.New("iceport: candidate transport must be \"udp\" or \"tcp\"")

	// errNoPhysicalPortFactory is returned by Listen when SetFactory was
	// never called.
	errNoPhysicalPortFactory = errors.New("iceport: no PhysicalPortFactory configured, call SetFactory first")
)
