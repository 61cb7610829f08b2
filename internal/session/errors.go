// SPDX-License-Identifier: MIT

package session

import "errors"

var (
	// ErrDuplicateUfrag is returned by AddSession when local_ufrag already
	// has a pending or active session (spec.md §4.5, §7 "Duplicate ufrag on add").
	ErrDuplicateUfrag = errors.New("session: local ufrag already registered")

	errNoAllocatedUfrag = errors.New("session: exhausted retries generating a unique ufrag")
)
