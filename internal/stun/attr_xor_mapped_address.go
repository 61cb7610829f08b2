// SPDX-License-Identifier: MIT

package stun

import (
	"encoding/binary"
	"net"
)

const (
	familyIPv4 byte = 0x01
	familyIPv6 byte = 0x02
)

// AddXORMappedAddress encodes addr XORed with the magic cookie (and, for
// IPv6, the transaction id too), per spec.md §4.2.
func (m *Message) AddXORMappedAddress(addr *net.UDPAddr) {
	ip4 := addr.IP.To4()

	var value []byte
	if ip4 != nil {
		value = make([]byte, 8)
		value[1] = familyIPv4
		binary.BigEndian.PutUint16(value[2:4], xorPort(addr.Port))
		xorBytes(value[4:8], ip4, cookieBytes())
	} else {
		ip16 := addr.IP.To16()
		value = make([]byte, 20)
		value[1] = familyIPv6
		binary.BigEndian.PutUint16(value[2:4], xorPort(addr.Port))
		xorBytes(value[4:20], ip16, append(cookieBytes(), m.TransactionID[:]...))
	}

	m.Add(AttrXORMappedAddress, value)
}

// XORMappedAddress decodes the peer's reflexive transport address.
func (m *Message) XORMappedAddress() (*net.UDPAddr, error) {
	value, ok := m.Get(AttrXORMappedAddress)
	if !ok {
		return nil, errAttributeNotFound
	}

	if len(value) < 4 {
		return nil, errAddressValueTruncated
	}

	family := value[1]
	port := int(xorPort(int(binary.BigEndian.Uint16(value[2:4]))))

	switch family {
	case familyIPv4:
		if len(value) < 8 {
			return nil, errAddressValueTruncated
		}
		ip := make([]byte, 4)
		xorBytes(ip, value[4:8], cookieBytes())

		return &net.UDPAddr{IP: net.IP(ip), Port: port}, nil
	case familyIPv6:
		if len(value) < 20 {
			return nil, errAddressValueTruncated
		}
		ip := make([]byte, 16)
		xorBytes(ip, value[4:20], append(cookieBytes(), m.TransactionID[:]...))

		return &net.UDPAddr{IP: net.IP(ip), Port: port}, nil
	default:
		return nil, errUnsupportedFamily
	}
}

func cookieBytes() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, MagicCookie)

	return b
}

// xorPort is symmetric: it both encodes and decodes since XOR is its own
// inverse. The magic cookie's top 16 bits key the port.
func xorPort(port int) uint16 {
	return uint16(port) ^ uint16(MagicCookie>>16) //nolint:gosec // port is always <= 65535
}

func xorBytes(dst, a, b []byte) {
	for i := range dst {
		dst[i] = a[i] ^ b[i]
	}
}
