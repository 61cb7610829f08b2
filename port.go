// SPDX-License-Identifier: MIT

// Package iceport implements the ICE connectivity-check termination point
// of a WebRTC media server: it demultiplexes UDP/TCP datagrams by protocol
// family, drives the STUN binding handshake that pairs a signaled session
// with a remote transport address, and forwards application-layer payloads
// (DTLS, RTP/RTCP) to registered observers.
//
// The dispatch and request-handling style is grounded on
// github.com/pion/turn/v4's internal/server package (Request struct plus
// free-function handlers, github.com/pion/logging for structured logging);
// see DESIGN.md for the full grounding ledger.
package iceport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/AirenSoft/ice-port/internal/binding"
	"github.com/AirenSoft/ice-port/internal/expiry"
	"github.com/AirenSoft/ice-port/internal/reframe"
	"github.com/AirenSoft/ice-port/internal/session"
	"github.com/AirenSoft/ice-port/internal/stun"
	"github.com/AirenSoft/ice-port/internal/turnchannel"
	"github.com/AirenSoft/ice-port/internal/wire"
)

// Config carries everything Listen/OnData need beyond the wire
// data itself, mirroring the teacher's ServerConfig aggregation style.
type Config struct {
	// LoggerFactory builds the LeveledLogger every internal component logs
	// through. A nil factory falls back to logging.NewDefaultLoggerFactory().
	LoggerFactory logging.LoggerFactory

	// Metrics receives ambient counters. May be nil to disable metrics.
	Metrics *Metrics

	// SessionExpiry is the deadline applied to every session added via
	// AddSession, refreshed on every accepted binding request (spec §3).
	SessionExpiry time.Duration
}

// Port is the public façade: it wires the packet identifier, STUN codec,
// TURN channel-data codec, TCP reframer, session registry, binding state
// machine, and expiration timer described in SPEC_FULL.md into the ingress
// dispatcher entry points a physical-port collaborator drives.
type Port struct {
	log     logging.LeveledLogger
	metrics *Metrics

	registry *session.Registry
	binding  *binding.Machine
	timer    *expiry.Timer

	observers []Observer

	portsMu sync.Mutex // physical_port_list_lock: held only during setup/teardown
	ports   []PhysicalPort

	demuxMu sync.RWMutex // demultiplexers_lock
	demux   map[uuid.UUID]*reframe.Reframer

	listenMu   sync.Mutex
	listenDone bool
	factory    PhysicalPortFactory
	expireCfg  time.Duration
}

// New constructs a Port. observers are copied; adding observers after
// construction is not supported, matching spec §9's "callbacks under
// locks deliberately avoided" stance (the observer list is immutable, so
// no lock is needed to iterate it).
func New(cfg Config, observers ...Observer) *Port {
	factory := cfg.LoggerFactory
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	log := factory.NewLogger("iceport")

	obs := make([]Observer, len(observers))
	copy(obs, observers)

	p := &Port{
		log:       log,
		metrics:   cfg.Metrics,
		observers: obs,
		demux:     make(map[uuid.UUID]*reframe.Reframer),
		expireCfg: cfg.SessionExpiry,
	}

	p.registry = session.NewRegistry([]session.Observer{&stateObserverAdapter{port: p}}, p.metricsSink())
	p.binding = binding.New(p.registry, log, p.metricsSink())
	p.timer = expiry.Start(p.registry, log)

	return p
}

func (p *Port) metricsSink() session.MetricsSink {
	if p.metrics == nil {
		return nil
	}

	return p.metrics
}

// stateObserverAdapter bridges internal/session.Observer's (sessionID,
// state) notifications into the public Observer's (port, SessionInfo,
// state) contract. It never runs while a registry lock is held: the
// registry always calls observers after releasing ufragMu/activeMu.
type stateObserverAdapter struct {
	port *Port
}

func (a *stateObserverAdapter) OnStateChanged(sessionID int64, newState session.State) {
	rec, ok := a.port.registry.LookupAny(sessionID)
	info := SessionInfo{SessionID: sessionID, State: newState}
	var phys PhysicalPort
	if ok {
		info.LocalUfrag = rec.LocalUfrag
		info.RemoteUfrag = rec.RemoteUfrag
		info.RemoteAddr = rec.RemoteAddr()
		phys, _ = rec.RemoteSocket().(PhysicalPort)
	}

	if a.port.metrics != nil {
		a.port.metrics.SessionStateChanged(sessionID, newState)
	}

	for _, o := range a.port.observers {
		o.OnStateChanged(phys, info, newState)
	}
}

func (a *stateObserverAdapter) OnDataReceived(sessionID int64, data []byte) {
	rec, ok := a.port.registry.LookupBySessionID(sessionID)
	if !ok {
		return
	}

	info := SessionInfo{
		SessionID:   sessionID,
		LocalUfrag:  rec.LocalUfrag,
		RemoteUfrag: rec.RemoteUfrag,
		State:       rec.State(),
		RemoteAddr:  rec.RemoteAddr(),
	}
	phys, _ := rec.RemoteSocket().(PhysicalPort)

	for _, o := range a.port.observers {
		o.OnDataReceived(phys, info, data)
	}
}

// AddSession registers a new pending session (spec §3, §4.5).
func (p *Port) AddSession(sessionID int64, offer, peer SessionDescription) error {
	_, err := p.registry.AddSession(sessionID, offer, peer, p.expireCfg)

	return err
}

// RemoveSession implements remove_session (spec §4.5, §7).
func (p *Port) RemoveSession(sessionID int64) bool {
	return p.registry.RemoveSession(sessionID)
}

// GenerateUfrag returns a fresh, collision-checked ufrag (spec §6).
func (p *Port) GenerateUfrag() (string, error) {
	return p.registry.GenerateUfrag()
}

// SetFactory installs the PhysicalPortFactory Listen binds endpoints
// through. It must be called before Listen; it is separate from Config
// because most factories (e.g. NewUDPPhysicalPortFactory) need a reference
// to the already-constructed Port in order to feed it received datagrams.
func (p *Port) SetFactory(factory PhysicalPortFactory) {
	p.factory = factory
}

// Listen coalesces the candidate list into one bound endpoint per distinct
// (transport, port) pair and binds each via the configured
// PhysicalPortFactory, per spec §6 "ICE candidate list". On any bind
// failure the endpoints already bound are closed and the error returned,
// per spec §7 "Port bind failure during setup: abort setup, undo any
// partial binds via close".
func (p *Port) Listen(candidates []Candidate) error {
	if len(candidates) == 0 {
		return ErrNoCandidates
	}

	p.listenMu.Lock()
	if p.listenDone {
		p.listenMu.Unlock()

		return ErrAlreadyListening
	}
	p.listenDone = true
	p.listenMu.Unlock()

	return p.listen(candidates)
}

type coalescedEndpoint struct {
	network string
	port    int
}

func (p *Port) listen(candidates []Candidate) error {
	if p.factory == nil {
		return errNoPhysicalPortFactory
	}

	seen := make(map[coalescedEndpoint]bool)
	var bound []PhysicalPort

	for _, c := range candidates {
		network := c.Transport
		if network != "udp" && network != "tcp" {
			p.closeAll(bound)

			return errUnsupportedCandidateTransport
		}

		for port := c.PortStart; port <= c.PortEnd; port++ {
			key := coalescedEndpoint{network: network, port: port}
			if seen[key] {
				continue
			}
			seen[key] = true

			addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
			sock, err := p.factory(network, addr)
			if err != nil {
				p.closeAll(bound)

				return fmt.Errorf("iceport: bind %s:%d: %w", network, port, err)
			}

			bound = append(bound, sock)
		}
	}

	p.portsMu.Lock()
	p.ports = append(p.ports, bound...)
	p.portsMu.Unlock()

	return nil
}

func (p *Port) closeAll(ports []PhysicalPort) {
	for _, sock := range ports {
		_ = sock.Close()
	}
}

// OnConnected implements the transport collaborator's on_connected entry
// point (spec §4.4): allocate a fresh reframer for a new TCP connection.
func (p *Port) OnConnected(connID uuid.UUID) {
	p.demuxMu.Lock()
	p.demux[connID] = reframe.New()
	p.demuxMu.Unlock()
}

// OnDisconnected implements on_disconnected (spec §4.4): drop the reframer
// for connID.
func (p *Port) OnDisconnected(connID uuid.UUID) {
	p.demuxMu.Lock()
	delete(p.demux, connID)
	p.demuxMu.Unlock()
}

// OnData implements on_data (spec §4.4). For UDP, connID is uuid.Nil and
// data is classified and dispatched exactly once. For TCP, data is
// appended to connID's reframer and every complete frame drained is
// classified and dispatched in arrival order.
func (p *Port) OnData(connID uuid.UUID, sock PhysicalPort, addr net.Addr, data []byte) {
	if connID == uuid.Nil {
		p.dispatch(sock, addr, data, 0)

		return
	}

	p.demuxMu.RLock()
	reframer, ok := p.demux[connID]
	p.demuxMu.RUnlock()

	if !ok {
		p.log.Warnf("iceport: on_data for unknown connection %s", connID)

		return
	}

	reframer.Append(data)

	for {
		frame, ok, err := reframer.PopFrame()
		if err != nil {
			p.log.Warnf("iceport: connection %s poisoned: %v", connID, err)

			return
		}
		if !ok {
			return
		}

		p.dispatch(sock, addr, frame, 0)
	}
}

// maxDispatchDepth bounds the one level of recursion channel-data
// decapsulation is allowed (spec §4.4: "must not recurse further").
const maxDispatchDepth = 1

func (p *Port) dispatch(sock PhysicalPort, addr net.Addr, data []byte, depth int) {
	switch wire.Classify(data) {
	case wire.STUN:
		p.dispatchSTUN(sock, addr, data)
	case wire.TURNChannelData:
		p.dispatchChannelData(sock, addr, data, depth)
	case wire.DTLS, wire.RTPOrRTCP:
		p.forward(addr, data)
	case wire.ZRTP, wire.Unknown:
		// Rejected silently, per spec §4.1.
	}
}

func (p *Port) dispatchSTUN(sock PhysicalPort, addr net.Addr, data []byte) {
	msg, err := stun.Parse(data)
	if err != nil {
		p.log.Debugf("iceport: malformed STUN packet from %s: %v", addr, err)

		return
	}

	switch {
	case msg.Class == stun.ClassRequest && msg.Method == stun.MethodBinding:
		if err := p.binding.ProcessBindingRequest(sock, addr, msg); err != nil {
			p.log.Warnf("iceport: process_binding_request from %s: %v", addr, err)
		}
	case msg.Class == stun.ClassSuccessResponse && msg.Method == stun.MethodBinding:
		if err := p.binding.ProcessBindingResponse(addr, msg); err != nil {
			p.log.Warnf("iceport: process_binding_response from %s: %v", addr, err)
		}
	case msg.Class == stun.ClassErrorResponse:
		p.log.Warnf("iceport: STUN error response from %s, dropping", addr)
	case msg.Class == stun.ClassRequest:
		p.binding.HandleControlMethod(msg.Method, addr)
	default:
		p.log.Debugf("iceport: unhandled STUN %s/%s from %s", msg.Class, msg.Method, addr)
	}
}

func (p *Port) dispatchChannelData(sock PhysicalPort, addr net.Addr, data []byte, depth int) {
	if depth >= maxDispatchDepth {
		p.log.Warnf("iceport: refusing to recurse past channel-data decapsulation for %s", addr)

		return
	}

	_, payload, err := turnchannel.Decode(data)
	if err != nil {
		p.log.Debugf("iceport: malformed TURN channel data from %s: %v", addr, err)

		return
	}

	p.dispatch(sock, addr, payload, depth+1)
}

func (p *Port) forward(addr net.Addr, data []byte) {
	rec, ok := p.registry.LookupByAddr(addr)
	if !ok {
		return
	}

	logRTPHeader(p.log, data)

	p.registry.NotifyDataReceived(rec.SessionID, data)

	if p.metrics != nil {
		p.metrics.BytesForwarded(len(data))
	}
}

// Send implements send(session_info, data) (spec §4.8): a single
// session-id lookup, delegating to the bound socket, wrapping in a TURN
// channel-data header first when the socket is TCP.
func (p *Port) Send(sessionID int64, data []byte) bool {
	rec, ok := p.registry.LookupBySessionID(sessionID)
	if !ok {
		return false
	}

	sock := rec.RemoteSocket()
	addr := rec.RemoteAddr()
	if sock == nil || addr == nil {
		return false
	}

	out := data
	if sock.Network() == "tcp" {
		out = turnchannel.Encode(rec.ChannelNumber, data)
		// Over TCP, channel data is padded to a 4-byte boundary.
		for len(out)%4 != 0 {
			out = append(out, 0)
		}
	}

	if _, err := sock.SendTo(addr, out); err != nil {
		p.log.Warnf("iceport: send to session %d failed: %v", sessionID, err)

		return false
	}

	if p.metrics != nil {
		p.metrics.BytesForwarded(len(data))
	}

	return true
}

// Close implements spec §5's cooperative cancellation: stop the expiration
// timer, then close every bound physical port. In-flight callbacks are
// allowed to complete naturally. Close does not wait for the ports' read
// loops to exit and does not gate OnData, so a datagram already being
// dispatched, or delivered by a collaborator that keeps calling OnData,
// can still reach observers after Close returns.
func (p *Port) Close() error {
	p.timer.Close()

	p.portsMu.Lock()
	ports := p.ports
	p.ports = nil
	p.portsMu.Unlock()

	var firstErr error
	for _, sock := range ports {
		if err := sock.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
