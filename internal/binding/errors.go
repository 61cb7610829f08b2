// SPDX-License-Identifier: MIT

package binding

import "errors"

var (
	errMalformedUsername  = errors.New("binding: malformed or missing USERNAME")
	errUnknownLocalUfrag  = errors.New("binding: local ufrag not registered")
	errIntegrityFailed    = errors.New("binding: MESSAGE-INTEGRITY check failed")
	errUnsupportedAddrKind = errors.New("binding: remote address is neither UDP nor TCP")
)
