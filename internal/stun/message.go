// SPDX-License-Identifier: MIT

package stun

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // mandated by RFC 5389 short-term credentials, not a security choice
	"encoding/binary"
)

// Message is a decoded STUN message: header fields plus an ordered list of
// attributes. Attribute order matters for Marshal/AddMessageIntegrity/
// AddFingerprint, which is why Attributes is a slice rather than a map.
type Message struct {
	Class         Class
	Method        Method
	TransactionID [TransactionIDSize]byte
	Attributes    []Attribute
}

// New builds an empty message with a fresh transaction id drawn from a
// CSPRNG, per spec.md §9 ("random transaction id must be drawn from a
// CSPRNG").
func New(class Class, method Method) (*Message, error) {
	m := &Message{Class: class, Method: method}
	if _, err := rand.Read(m.TransactionID[:]); err != nil {
		return nil, err
	}

	return m, nil
}

// NewWithTransactionID builds a message mirroring a caller-supplied
// transaction id, used to build responses that echo a request's id.
func NewWithTransactionID(class Class, method Method, tid [TransactionIDSize]byte) *Message {
	return &Message{Class: class, Method: method, TransactionID: tid}
}

// Parse decodes a raw STUN message. The caller is expected to have already
// classified the datagram as STUN (wire.Classify); Parse re-validates the
// magic cookie and length framing regardless.
func Parse(raw []byte) (*Message, error) {
	if len(raw) < headerSize {
		return nil, errHeaderTooShort
	}

	typeVal := binary.BigEndian.Uint16(raw[0:2])
	length := int(binary.BigEndian.Uint16(raw[2:4]))
	cookie := binary.BigEndian.Uint32(raw[4:8])

	if cookie != MagicCookie {
		return nil, errBadMagicCookie
	}

	if len(raw) < headerSize+length {
		return nil, errTruncatedMessage
	}

	attrs, err := decodeAttrs(raw[headerSize : headerSize+length])
	if err != nil {
		return nil, err
	}

	class, method := decodeType(typeVal)
	m := &Message{Class: class, Method: method, Attributes: attrs}
	copy(m.TransactionID[:], raw[8:20])

	return m, nil
}

// Marshal serializes the message as-is; callers that need
// MESSAGE-INTEGRITY/FINGERPRINT must add those attributes first via
// AddMessageIntegrity/AddFingerprint, in that order, before calling Marshal.
func (m *Message) Marshal() []byte {
	body := encodeBody(m.Attributes)
	header := encodeHeader(m.Class, m.Method, uint16(len(body)), m.TransactionID)

	return append(header, body...)
}

// Add appends an opaque attribute, preserving whatever attributes were
// already present. It must be called before AddMessageIntegrity/
// AddFingerprint for the attribute to be covered by either.
func (m *Message) Add(attrType uint16, value []byte) {
	m.Attributes = append(m.Attributes, Attribute{Type: attrType, Value: value})
}

// Get returns the first attribute of the given type.
func (m *Message) Get(attrType uint16) ([]byte, bool) {
	if i := indexOf(m.Attributes, attrType); i >= 0 {
		return m.Attributes[i].Value, true
	}

	return nil, false
}

// Contains reports whether an attribute of the given type is present.
func (m *Message) Contains(attrType uint16) bool {
	return indexOf(m.Attributes, attrType) >= 0
}

const (
	messageIntegritySize     = 20 // HMAC-SHA1 digest size
	messageIntegrityAttrSize = 4 + messageIntegritySize
	fingerprintValueSize     = 4
	fingerprintAttrSize      = 4 + fingerprintValueSize
)

// AddMessageIntegrity computes and appends MESSAGE-INTEGRITY per
// spec.md §4.2: HMAC-SHA1 over the serialized message so far, using a
// length field that has already been adjusted to include the attribute
// being computed. It must be called after all other attributes and before
// AddFingerprint.
func (m *Message) AddMessageIntegrity(password string) {
	body := encodeBody(m.Attributes)
	header := encodeHeader(m.Class, m.Method, uint16(len(body)+messageIntegrityAttrSize), m.TransactionID)

	mac := hmac.New(sha1.New, []byte(password))
	mac.Write(header)
	mac.Write(body)
	sum := mac.Sum(nil)

	m.Attributes = append(m.Attributes, Attribute{Type: AttrMessageIntegrity, Value: sum})
}

// AddFingerprint computes and appends FINGERPRINT per spec.md §4.2: CRC32
// XORed with FingerprintXOR, over everything preceding it (which by
// construction is everything, since FINGERPRINT is always last). Must be
// the final attribute added.
func (m *Message) AddFingerprint() {
	body := encodeBody(m.Attributes)
	header := encodeHeader(m.Class, m.Method, uint16(len(body)+fingerprintAttrSize), m.TransactionID)

	sum := crc32Checksum(header, body) ^ FingerprintXOR

	val := make([]byte, 4)
	binary.BigEndian.PutUint32(val, sum)
	m.Attributes = append(m.Attributes, Attribute{Type: AttrFingerprint, Value: val})
}

// CheckIntegrity recomputes MESSAGE-INTEGRITY over the serialized
// attributes that precede it, with the length field adjusted to end just
// after MESSAGE-INTEGRITY, and compares in constant time. Attributes after
// MESSAGE-INTEGRITY (normally only FINGERPRINT) are not covered. It fails
// closed when MESSAGE-INTEGRITY is absent.
func (m *Message) CheckIntegrity(password string) error {
	miIndex := indexOf(m.Attributes, AttrMessageIntegrity)
	if miIndex < 0 {
		return errIntegrityMismatch
	}

	prefix := m.Attributes[:miIndex]
	body := encodeBody(prefix)
	header := encodeHeader(m.Class, m.Method, uint16(len(body)+messageIntegrityAttrSize), m.TransactionID)

	mac := hmac.New(sha1.New, []byte(password))
	mac.Write(header)
	mac.Write(body)
	expected := mac.Sum(nil)

	if !hmac.Equal(expected, m.Attributes[miIndex].Value) {
		return errIntegrityMismatch
	}

	return nil
}
