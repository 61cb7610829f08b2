// SPDX-License-Identifier: MIT

// Package reframe implements the per-TCP-connection stream reframer of
// spec.md §4.3: an append-only byte buffer that yields complete STUN or
// TURN channel-data frames as they arrive, regardless of how the caller's
// reads happen to chunk the underlying stream.
//
// The accumulate/consume strategy follows
// github.com/pion/transport/v3/packetio.Buffer, which the pack's DTLS/SRTP
// stacks use for the same class of problem (reassembling a byte stream
// into logical frames); this package can't use packetio.Buffer directly
// because it needs to expose frame *boundaries* derived from the STUN/
// channel-data length fields rather than an io.Reader of already-segmented
// packets.
package reframe

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrPoisoned is returned once a connection has produced a malformed
	// length field; the reframer refuses further frames until the
	// connection is closed and a new Reframer is allocated for it.
	ErrPoisoned = errors.New("reframe: connection poisoned by a malformed frame length")

	errUnrecognizedLeadByte = errors.New("reframe: leading byte is neither STUN nor TURN channel data")
)

// Reframer accumulates bytes for a single TCP connection and yields
// complete frames. It is not safe for concurrent use; callers rely on the
// transport collaborator serializing callbacks per connection
// (spec.md §5).
type Reframer struct {
	buf      []byte
	poisoned bool
}

// New returns an empty Reframer.
func New() *Reframer {
	return &Reframer{}
}

// Append adds newly received bytes to the buffer.
func (r *Reframer) Append(data []byte) {
	r.buf = append(r.buf, data...)
}

// HasFrame reports whether a complete frame is currently buffered, without
// consuming it.
func (r *Reframer) HasFrame() bool {
	total, complete, err := frameLength(r.buf)

	return err == nil && complete && total > 0
}

// PopFrame removes and returns exactly one complete frame, including its
// header, from the front of the buffer. It returns ok=false when no
// complete frame is yet available; no partial frame is ever returned
// (spec.md §4.3). Once a malformed length is observed the connection is
// poisoned and every subsequent call returns ErrPoisoned.
func (r *Reframer) PopFrame() (frame []byte, ok bool, err error) {
	if r.poisoned {
		return nil, false, ErrPoisoned
	}

	total, complete, ferr := frameLength(r.buf)
	if ferr != nil {
		r.poisoned = true

		return nil, false, ferr
	}

	if !complete {
		return nil, false, nil
	}

	frame = make([]byte, total)
	copy(frame, r.buf[:total])
	r.buf = r.buf[total:]

	return frame, true, nil
}

// Poisoned reports whether the connection has already produced a malformed
// frame length.
func (r *Reframer) Poisoned() bool {
	return r.poisoned
}

// frameLength inspects the front of buf and returns how many bytes the next
// frame occupies on the wire (including any TCP-only padding), whether that
// many bytes have already arrived, and an error if the leading byte or
// length field is malformed.
func frameLength(buf []byte) (total int, complete bool, err error) {
	if len(buf) == 0 {
		return 0, false, nil
	}

	switch lead := buf[0]; {
	case lead == 0x00 || lead == 0x01:
		return stunFrameLength(buf)
	case lead >= 0x40 && lead <= 0x7F:
		return channelDataFrameLength(buf)
	default:
		return 0, false, errUnrecognizedLeadByte
	}
}

func stunFrameLength(buf []byte) (total int, complete bool, err error) {
	const stunHeaderSize = 20
	if len(buf) < stunHeaderSize {
		return 0, false, nil
	}

	messageLength := int(binary.BigEndian.Uint16(buf[2:4]))
	total = stunHeaderSize + messageLength

	return total, len(buf) >= total, nil
}

func channelDataFrameLength(buf []byte) (total int, complete bool, err error) {
	const channelHeaderSize = 4
	if len(buf) < channelHeaderSize {
		return 0, false, nil
	}

	dataLength := int(binary.BigEndian.Uint16(buf[2:4]))
	unpadded := channelHeaderSize + dataLength
	total = roundUpToFour(unpadded)

	return total, len(buf) >= total, nil
}

func roundUpToFour(n int) int {
	if rem := n % 4; rem != 0 {
		return n + (4 - rem)
	}

	return n
}
