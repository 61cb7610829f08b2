// SPDX-License-Identifier: MIT

package stun

import "strings"

// AddUsername encodes a binding-request USERNAME of the form
// "local-ufrag:remote-ufrag", per spec.md §4.2.
func (m *Message) AddUsername(localUfrag, remoteUfrag string) {
	m.Add(AttrUsername, []byte(localUfrag+":"+remoteUfrag))
}

// Username splits a USERNAME attribute into its local/remote ufrag halves.
func (m *Message) Username() (localUfrag, remoteUfrag string, err error) {
	value, ok := m.Get(AttrUsername)
	if !ok {
		return "", "", errAttributeNotFound
	}

	local, remote, found := strings.Cut(string(value), ":")
	if !found {
		return "", "", errUsernameMalformed
	}

	return local, remote, nil
}
