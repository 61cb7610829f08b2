// SPDX-License-Identifier: MIT

package stun

import "hash/crc32"

func crc32Checksum(parts ...[]byte) uint32 {
	h := crc32.NewIEEE()
	for _, p := range parts {
		h.Write(p) //nolint:errcheck // hash.Hash.Write never returns an error
	}

	return h.Sum32()
}
