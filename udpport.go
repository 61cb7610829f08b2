// SPDX-License-Identifier: MIT

package iceport

import (
	"net"

	"github.com/google/uuid"
	"github.com/pion/logging"
)

// NewUDPPhysicalPortFactory returns a PhysicalPortFactory that binds a real
// net.ListenUDP socket per candidate port and pumps its ReadLoop into port.
// This is the reference PhysicalPort implementation for the demo binary;
// production deployments typically already own a lower-level packet-conn
// abstraction and implement PhysicalPort directly against it, the way
// examples/turn-server/simple/main.go in the pack passes a pre-bound
// net.PacketConn into pion/turn rather than letting the library dial its
// own socket.
func NewUDPPhysicalPortFactory(port *Port, log logging.LeveledLogger) PhysicalPortFactory {
	return func(network string, addr *net.UDPAddr) (PhysicalPort, error) {
		if network != "udp" {
			return nil, errUnsupportedCandidateTransport
		}

		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return nil, err
		}

		up := &udpPhysicalPort{conn: conn, log: log, port: port}
		go up.readLoop()

		return up, nil
	}
}

type udpPhysicalPort struct {
	conn *net.UDPConn
	log  logging.LeveledLogger
	port *Port
}

func (u *udpPhysicalPort) SendTo(addr net.Addr, data []byte) (int, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, errUnsupportedCandidateTransport
	}

	return u.conn.WriteToUDP(data, udpAddr)
}

func (u *udpPhysicalPort) LocalAddr() net.Addr { return u.conn.LocalAddr() }
func (u *udpPhysicalPort) Network() string     { return "udp" }
func (u *udpPhysicalPort) Close() error        { return u.conn.Close() }

// readLoop mirrors the teacher's internal/server ReadLoop
// (github.com/pion/turn/v4): a per-socket goroutine that reads datagrams
// until the socket closes and feeds them into the dispatcher. UDP has no
// connection lifecycle, so on_connected/on_disconnected are never invoked
// for this transport; connID is always uuid.Nil.
func (u *udpPhysicalPort) readLoop() {
	buf := make([]byte, 1500)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			u.log.Debugf("iceport: udp read loop on %s exiting: %v", u.conn.LocalAddr(), err)

			return
		}

		u.port.OnData(uuid.Nil, u, addr, buf[:n])
	}
}
