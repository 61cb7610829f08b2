// SPDX-License-Identifier: MIT

// Package stun implements the subset of RFC 5389 STUN message parsing and
// serialization the ICE port needs to drive its own binding handshake:
// header framing, USERNAME/XOR-MAPPED-ADDRESS/MESSAGE-INTEGRITY/FINGERPRINT
// attributes, and opaque pass-through for everything else.
//
// This package intentionally does not depend on an external STUN library.
// The wire codec is THE CORE of the ICE port (see the module's SPEC_FULL.md)
// rather than an ambient concern, so it is grounded on the teacher's own
// hand-rolled stun/ package (attribute-per-file layout, header parsing
// style) instead of importing github.com/pion/stun.
package stun

import "encoding/binary"

// MagicCookie is the fixed constant that opens every STUN header
// (RFC 5389 §6).
const MagicCookie uint32 = 0x2112A442

// TransactionIDSize is the length in bytes of a STUN transaction id.
const TransactionIDSize = 12

const headerSize = 20

// Class is the two-bit STUN message class.
type Class byte

// The four STUN message classes.
const (
	ClassRequest         Class = 0x00
	ClassIndication      Class = 0x01
	ClassSuccessResponse Class = 0x02
	ClassErrorResponse   Class = 0x03
)

func (c Class) String() string {
	switch c {
	case ClassRequest:
		return "request"
	case ClassIndication:
		return "indication"
	case ClassSuccessResponse:
		return "success-response"
	case ClassErrorResponse:
		return "error-response"
	default:
		return "unknown-class"
	}
}

// Method is the 12-bit STUN method.
type Method uint16

// Methods recognized by the ICE port. Allocate/Refresh/CreatePermission/
// ChannelBind are TURN control methods: the dispatcher recognizes them so
// it can log and drop cleanly, but (per spec.md §9) does not implement TURN
// server semantics for them.
const (
	MethodBinding          Method = 0x0001
	MethodAllocate         Method = 0x0003
	MethodRefresh          Method = 0x0004
	MethodSend             Method = 0x0006
	MethodData             Method = 0x0007
	MethodCreatePermission Method = 0x0008
	MethodChannelBind      Method = 0x0009
)

func (m Method) String() string {
	switch m {
	case MethodBinding:
		return "binding"
	case MethodAllocate:
		return "allocate"
	case MethodRefresh:
		return "refresh"
	case MethodSend:
		return "send"
	case MethodData:
		return "data"
	case MethodCreatePermission:
		return "create-permission"
	case MethodChannelBind:
		return "channel-bind"
	default:
		return "unknown-method"
	}
}

// encodeType packs class and method into the 14 significant bits of the
// STUN message type field, per RFC 5389 §6:
//
//	M11 M10 M9 M8 M7 C1 M6 M5 M4 C0 M3 M2 M1 M0
func encodeType(class Class, method Method) uint16 {
	m := uint16(method)

	return ((m & 0x0f80) << 2) | ((m & 0x0070) << 1) | (m & 0x000f) |
		(uint16(class&0x02) << 7) | (uint16(class&0x01) << 4)
}

func decodeType(t uint16) (Class, Method) {
	method := ((t & 0x3e00) >> 2) | ((t & 0x00e0) >> 1) | (t & 0x000f)
	class := byte(((t & 0x0100) >> 7) | ((t & 0x0010) >> 4))

	return Class(class), Method(method)
}

func encodeHeader(class Class, method Method, attrsLen uint16, transactionID [TransactionIDSize]byte) []byte {
	h := make([]byte, headerSize)
	binary.BigEndian.PutUint16(h[0:2], encodeType(class, method))
	binary.BigEndian.PutUint16(h[2:4], attrsLen)
	binary.BigEndian.PutUint32(h[4:8], MagicCookie)
	copy(h[8:20], transactionID[:])

	return h
}
