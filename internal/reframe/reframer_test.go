// SPDX-License-Identifier: MIT

package reframe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSTUNFrame(bodyLen int) []byte {
	frame := make([]byte, 20+bodyLen)
	frame[0] = 0x00
	binary.BigEndian.PutUint16(frame[2:4], uint16(bodyLen))
	binary.BigEndian.PutUint32(frame[4:8], 0x2112A442)

	return frame
}

func buildChannelDataFrame(channel uint16, dataLen int) []byte {
	unpadded := 4 + dataLen
	padded := unpadded
	if rem := padded % 4; rem != 0 {
		padded += 4 - rem
	}
	frame := make([]byte, padded)
	binary.BigEndian.PutUint16(frame[0:2], channel)
	binary.BigEndian.PutUint16(frame[2:4], uint16(dataLen))

	return frame
}

func TestReframerYieldsFramesAcrossChunkBoundaries(t *testing.T) {
	stunFrame := buildSTUNFrame(4) // 24 bytes total
	channelFrame := buildChannelDataFrame(0x4001, 12)

	stream := append(append([]byte{}, stunFrame...), channelFrame...)

	r := New()
	var frames [][]byte

	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		r.Append(stream[i:end])

		for r.HasFrame() {
			frame, ok, err := r.PopFrame()
			require.NoError(t, err)
			require.True(t, ok)
			frames = append(frames, frame)
		}
	}

	require.Len(t, frames, 2)
	assert.Equal(t, len(stunFrame), len(frames[0]))
	assert.Equal(t, byte(0x00), frames[0][0])
	assert.GreaterOrEqual(t, len(frames[1]), 16) // header + 12 bytes of RTP payload
}

func TestReframerNoPartialFrame(t *testing.T) {
	stunFrame := buildSTUNFrame(4)

	r := New()
	r.Append(stunFrame[:10])
	assert.False(t, r.HasFrame())

	frame, ok, err := r.PopFrame()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, frame)

	r.Append(stunFrame[10:])
	assert.True(t, r.HasFrame())
}

func TestReframerPoisonsOnMalformedLeadByte(t *testing.T) {
	r := New()
	r.Append([]byte{0x99, 0x99, 0x99, 0x99})

	_, ok, err := r.PopFrame()
	assert.False(t, ok)
	assert.Error(t, err)
	assert.True(t, r.Poisoned())

	_, _, err = r.PopFrame()
	assert.ErrorIs(t, err, ErrPoisoned)
}
