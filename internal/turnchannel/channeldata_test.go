// SPDX-License-Identifier: MIT

package turnchannel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("rtp-payload-bytes")
	frame := Encode(0x4001, payload)

	assert.True(t, IsChannelData(frame))

	channel, data, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x4001), channel)
	assert.Equal(t, payload, data)
}

func TestDecodeTooShort(t *testing.T) {
	_, _, err := Decode([]byte{0x40, 0x01})
	assert.Error(t, err)
}

func TestDecodeDeclaredLengthExceedsBuffer(t *testing.T) {
	frame := []byte{0x40, 0x01, 0x00, 0x10} // declares 16 bytes, has 0
	_, _, err := Decode(frame)
	assert.Error(t, err)
}

func TestIsChannelDataRange(t *testing.T) {
	assert.True(t, IsChannelData([]byte{0x40}))
	assert.True(t, IsChannelData([]byte{0x7F}))
	assert.False(t, IsChannelData([]byte{0x3F}))
	assert.False(t, IsChannelData([]byte{0x80}))
	assert.False(t, IsChannelData(nil))
}
