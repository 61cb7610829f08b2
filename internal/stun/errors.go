// SPDX-License-Identifier: MIT

package stun

import "errors"

var (
	errHeaderTooShort        = errors.New("stun: header shorter than 20 bytes")
	errBadMagicCookie        = errors.New("stun: magic cookie mismatch")
	errTruncatedMessage      = errors.New("stun: message shorter than advertised length")
	errTruncatedAttribute    = errors.New("stun: attribute value truncated")
	errAttributeLengthOdd    = errors.New("stun: attribute stream ended mid-header")
	errAttributeNotFound     = errors.New("stun: attribute not present")
	errUsernameMalformed     = errors.New("stun: USERNAME missing local:remote separator")
	errUnsupportedFamily     = errors.New("stun: unsupported XOR-MAPPED-ADDRESS family")
	errAddressValueTruncated = errors.New("stun: XOR-MAPPED-ADDRESS value too short for its family")
	errIntegrityMismatch     = errors.New("stun: MESSAGE-INTEGRITY does not verify")
)
