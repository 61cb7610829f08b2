// SPDX-License-Identifier: MIT

package iceport

import (
	"github.com/pion/logging"
	"github.com/pion/rtp"
)

// logRTPHeader makes a best-effort attempt to unmarshal data as an RTP
// packet purely to enrich the debug log line with SSRC/payload
// type/sequence number (SPEC_FULL.md §4.7). A failure to parse (the
// datagram may actually be RTCP, or DTLS application data) is silently
// swallowed; it must never gate or mutate delivery to observers.
func logRTPHeader(log logging.LeveledLogger, data []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		return
	}

	log.Tracef("iceport: forwarding rtp ssrc=%d pt=%d seq=%d", pkt.SSRC, pkt.PayloadType, pkt.SequenceNumber)
}
