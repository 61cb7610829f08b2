// SPDX-License-Identifier: MIT

// Package turnchannel implements RFC 5766 §11.4 TURN channel-data framing:
// the compact 4-byte-header encapsulation of application bytes used by the
// built-in TURN relay short-circuit (spec.md §9).
package turnchannel

import (
	"encoding/binary"
	"errors"
)

const headerSize = 4

var (
	errTooShort         = errors.New("turnchannel: datagram shorter than the 4-byte header")
	errDataLengthTooBig = errors.New("turnchannel: declared data length exceeds datagram")
)

// MinChannelNumber and MaxChannelNumber bound the RFC 5766 §11 channel
// number range, 0x4000-0x7FFF. Channel numbers are the full 16-bit field;
// their leading byte spans the 0x40..0x7F range the packet identifier
// checks.
const (
	MinChannelNumber uint16 = 0x4000
	MaxChannelNumber uint16 = 0x7FFF
)

// IsChannelData reports whether the leading byte falls in the TURN
// channel-data range (0x40-0x7F), mirroring wire.Classify's TURNChannelData
// case; kept independently so this package has no dependency on wire.
func IsChannelData(data []byte) bool {
	return len(data) >= 1 && data[0] >= 0x40 && data[0] <= 0x7F
}

// Decode parses the 4-byte channel header and returns the channel number
// plus the inner payload. The payload slice aliases data; callers that hold
// on to it across a buffer reuse must copy it first.
func Decode(data []byte) (channelNumber uint16, payload []byte, err error) {
	if len(data) < headerSize {
		return 0, nil, errTooShort
	}

	channelNumber = binary.BigEndian.Uint16(data[0:2])
	length := int(binary.BigEndian.Uint16(data[2:4]))

	if headerSize+length > len(data) {
		return 0, nil, errDataLengthTooBig
	}

	return channelNumber, data[headerSize : headerSize+length], nil
}

// Encode wraps data in a TURN channel-data header for the given channel
// number, per the send path of spec.md §4.8. It does not pad to a 4-byte
// boundary: that padding is a TCP stream-framing detail owned by the
// reframer/writer, not part of the logical frame.
func Encode(channelNumber uint16, data []byte) []byte {
	out := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(out[0:2], channelNumber)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(data))) //nolint:gosec // channel-data payloads are bounded by MTU
	copy(out[headerSize:], data)

	return out
}
