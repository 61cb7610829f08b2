// SPDX-License-Identifier: MIT

package stun

import "encoding/binary"

// AddIceControlling appends an 8-byte ICE-CONTROLLING tiebreaker, as sent
// with the server's own binding request (spec.md §4.6, step 3).
func (m *Message) AddIceControlling(tiebreaker uint64) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, tiebreaker)
	m.Add(AttrIceControlling, v)
}

// AddUseCandidate appends the empty USE-CANDIDATE flag attribute.
func (m *Message) AddUseCandidate() {
	m.Add(AttrUseCandidate, nil)
}

// AddPriority appends a 4-byte encoded ICE priority.
func (m *Message) AddPriority(priority uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, priority)
	m.Add(AttrPriority, v)
}
