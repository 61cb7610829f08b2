// SPDX-License-Identifier: MIT

package stun

import "encoding/binary"

// Attribute type numbers this codec understands by name; everything else
// round-trips as opaque pass-through.
const (
	AttrUsername          uint16 = 0x0006
	AttrMessageIntegrity  uint16 = 0x0008
	AttrErrorCode         uint16 = 0x0009
	AttrUnknownAttributes uint16 = 0x000A
	AttrXORMappedAddress  uint16 = 0x0020
	AttrPriority          uint16 = 0x0024
	AttrUseCandidate      uint16 = 0x0025
	AttrIceControlled     uint16 = 0x8029
	AttrIceControlling    uint16 = 0x802A
	AttrFingerprint       uint16 = 0x8028
)

// FingerprintXOR is XORed into the CRC32 checksum before it is stored, per
// RFC 5389 §15.5, so FINGERPRINT never matches a coincidental CRC of some
// unrelated protocol.
const FingerprintXOR uint32 = 0x5354554E

// Attribute is a single, already-decoded TLV. The Value is the unpadded
// attribute value; padding to a 4-byte boundary is a wire-format detail
// handled entirely by encode/decode.
type Attribute struct {
	Type  uint16
	Value []byte
}

func padLen(n int) int {
	if rem := n % 4; rem != 0 {
		return n + (4 - rem)
	}

	return n
}

func encodeAttr(a Attribute) []byte {
	padded := padLen(len(a.Value))
	buf := make([]byte, 4+padded)
	binary.BigEndian.PutUint16(buf[0:2], a.Type)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(a.Value)))
	copy(buf[4:4+len(a.Value)], a.Value)

	return buf
}

func encodeBody(attrs []Attribute) []byte {
	body := make([]byte, 0, 64)
	for _, a := range attrs {
		body = append(body, encodeAttr(a)...)
	}

	return body
}

func decodeAttrs(raw []byte) ([]Attribute, error) {
	var attrs []Attribute

	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, errAttributeLengthOdd
		}

		attrType := binary.BigEndian.Uint16(raw[0:2])
		length := int(binary.BigEndian.Uint16(raw[2:4]))
		padded := padLen(length)

		if len(raw) < 4+padded {
			return nil, errTruncatedAttribute
		}

		value := make([]byte, length)
		copy(value, raw[4:4+length])
		attrs = append(attrs, Attribute{Type: attrType, Value: value})
		raw = raw[4+padded:]
	}

	return attrs, nil
}

// indexOf returns the index of the first attribute of the given type, or -1.
func indexOf(attrs []Attribute, attrType uint16) int {
	for i, a := range attrs {
		if a.Type == attrType {
			return i
		}
	}

	return -1
}
