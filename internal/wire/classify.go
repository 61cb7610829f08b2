// Package wire classifies raw datagrams by their leading byte(s) into one
// of the protocol families an ICE server-side candidate endpoint has to
// demultiplex: STUN, TURN channel data, DTLS, RTP/RTCP, ZRTP, or unknown.
//
// The classification boundaries follow the byte ranges used throughout the
// WebRTC media-server pack this port was grounded on (e.g. pion/turn's
// turn.IsChannelData check in server.go, and the DTLS content-type range
// used by pion/dtls's record layer).
package wire

// Type identifies the protocol family a datagram belongs to.
type Type int

// Recognized packet families. UNKNOWN and ZRTP are both discarded by
// callers; they are kept distinct only so logging can tell them apart.
const (
	Unknown Type = iota
	STUN
	TURNChannelData
	DTLS
	RTPOrRTCP
	ZRTP
)

func (t Type) String() string {
	switch t {
	case STUN:
		return "stun"
	case TURNChannelData:
		return "turn-channel-data"
	case DTLS:
		return "dtls"
	case RTPOrRTCP:
		return "rtp-rtcp"
	case ZRTP:
		return "zrtp"
	default:
		return "unknown"
	}
}

// dtlsContentTypeLow and dtlsContentTypeHigh mirror the ContentType range
// defined by github.com/pion/dtls/v2/pkg/protocol (ChangeCipherSpec=20,
// Alert=21, Handshake=22, ApplicationData=23). We don't import that package
// here since it drags in a full DTLS record decoder for a value we only use
// as a documentation cross-check; the numeric range is stable RFC 6347
// wire-format and the DTLS/SRTP stack it feeds is an external collaborator.
const (
	dtlsContentTypeLow  = 0x14
	dtlsContentTypeHigh = 0x17
)

// Classify identifies the packet family of a single datagram's first byte.
// An empty datagram classifies as Unknown.
func Classify(data []byte) Type {
	if len(data) == 0 {
		return Unknown
	}

	b := data[0]
	switch {
	case b <= 0x03:
		// Two high bits zero: STUN framing (RFC 5389 §6).
		return STUN
	case b >= 0x10 && b <= 0x13:
		return ZRTP
	case b >= dtlsContentTypeLow && b <= dtlsContentTypeHigh:
		return DTLS
	case b >= 0x40 && b <= 0x7F:
		return TURNChannelData
	case b >= 0x80 && b <= 0xBF:
		return RTPOrRTCP
	default:
		return Unknown
	}
}
