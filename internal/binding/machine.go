// SPDX-License-Identifier: MIT

// Package binding drives the four-step STUN binding handshake of
// spec.md §4.6 and publishes the resulting state transitions through the
// session registry's observers.
//
// The request/response building style (small helper functions layered on
// top of the codec, called from free functions rather than deep method
// chains) is grounded on the teacher's internal/server/util.go
// (buildAndSend/buildMsg helpers in github.com/pion/turn).
package binding

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"

	"github.com/AirenSoft/ice-port/internal/session"
	"github.com/AirenSoft/ice-port/internal/stun"
)

// basePriority is an arbitrary but fixed ICE candidate priority base; the
// low byte is randomized per outgoing request purely to avoid identical
// priorities across sessions when logged/debugged side by side. It carries
// no security weight, unlike the transaction id or tiebreaker.
const basePriority uint32 = 1<<24 | 1<<8

// Machine drives process_binding_request/process_binding_response
// (spec.md §4.6) against a session.Registry.
type Machine struct {
	registry *session.Registry
	log      logging.LeveledLogger
	metrics  session.MetricsSink
	rand     randutil.MathRandomGenerator
	now      func() time.Time
}

// New constructs a Machine. metrics may be nil.
func New(registry *session.Registry, log logging.LeveledLogger, metrics session.MetricsSink) *Machine {
	return &Machine{
		registry: registry,
		log:      log,
		metrics:  metrics,
		rand:     randutil.NewMathRandomGenerator(),
		now:      time.Now,
	}
}

func (b *Machine) metricsOrNoop() session.MetricsSink {
	if b.metrics == nil {
		return discardMetrics{}
	}

	return b.metrics
}

// ProcessBindingRequest implements spec.md §4.6's process_binding_request.
// sock is the physical port the datagram arrived on; it is only used to
// send the immediate success response, since the session may not yet have
// a bound socket of its own.
func (b *Machine) ProcessBindingRequest(sock session.Sender, addr net.Addr, msg *stun.Message) error {
	localUfrag, remoteUfrag, err := msg.Username()
	if err != nil {
		b.log.Debugf("%v: %v (from %s)", errMalformedUsername, err, addr)

		return nil //nolint:nilerr // malformed packets are dropped, never propagated (spec.md §7)
	}

	rec, ok := b.registry.LookupByUfrag(localUfrag)
	if !ok {
		b.log.Debugf("%v: %q (from %s)", errUnknownLocalUfrag, localUfrag, addr)

		return nil
	}

	if remoteUfrag != rec.RemoteUfrag {
		// Permissive per spec.md §9: SDP parsing is not yet tight enough to
		// treat this as a hard rejection.
		b.log.Warnf("binding: ufrag mismatch for session %d: got %q, want %q", rec.SessionID, remoteUfrag, rec.RemoteUfrag)
	}

	if err := msg.CheckIntegrity(rec.OfferSDP.ICEPwd()); err != nil {
		b.log.Warnf("%v for session %d from %s, evicting", errIntegrityFailed, rec.SessionID, addr)
		b.registry.EvictFailed(rec)
		b.metricsOrNoop().BindingRequestRejected("integrity")

		return nil
	}

	rec.RefreshDeadline(b.now())

	if rec.State() == session.New {
		b.registry.Promote(rec, sock, addr)
	}

	b.metricsOrNoop().BindingRequestAccepted()

	if err := b.sendBindingSuccessResponse(sock, addr, msg, rec); err != nil {
		return err
	}

	return b.sendServerBindingRequest(rec)
}

// ProcessBindingResponse implements spec.md §4.6's process_binding_response.
func (b *Machine) ProcessBindingResponse(addr net.Addr, msg *stun.Message) error {
	rec, ok := b.registry.LookupByAddr(addr)
	if !ok {
		b.log.Debugf("binding: discarding success-response from unknown address %s", addr)

		return nil
	}

	if err := msg.CheckIntegrity(rec.OfferSDP.ICEPwd()); err != nil {
		// A spurious response must never evict an already-Connected
		// session (spec.md §4.6, §7).
		b.log.Warnf("binding: integrity check failed on response for session %d, ignoring", rec.SessionID)
		b.metricsOrNoop().BindingResponseDropped()

		return nil
	}

	b.registry.MarkConnected(rec)
	b.metricsOrNoop().BindingResponseConnected()

	return nil
}

// HandleControlMethod acknowledges STUN Allocate/Refresh/CreatePermission/
// ChannelBind (spec.md §4.6 "recognized but not currently acted on") by
// logging and doing nothing else, per DESIGN.md Open Question decision 3.
func (b *Machine) HandleControlMethod(method stun.Method, addr net.Addr) {
	b.log.Debugf("binding: recognized but unhandled TURN control method %s from %s", method, addr)
}

func (b *Machine) sendBindingSuccessResponse(sock session.Sender, addr net.Addr, req *stun.Message, rec *session.Record) error {
	resp := stun.NewWithTransactionID(stun.ClassSuccessResponse, stun.MethodBinding, req.TransactionID)

	udpAddr, err := toUDPAddr(addr)
	if err != nil {
		return err
	}
	resp.AddXORMappedAddress(udpAddr)
	resp.AddMessageIntegrity(rec.OfferSDP.ICEPwd())
	resp.AddFingerprint()

	_, err = sock.SendTo(addr, resp.Marshal())

	return err
}

func (b *Machine) sendServerBindingRequest(rec *session.Record) error {
	sock := rec.RemoteSocket()
	addr := rec.RemoteAddr()
	if sock == nil || addr == nil {
		return nil
	}

	req, err := stun.New(stun.ClassRequest, stun.MethodBinding)
	if err != nil {
		return err
	}

	req.AddUsername(rec.RemoteUfrag, rec.LocalUfrag)

	tiebreaker, err := randomTiebreaker()
	if err != nil {
		return err
	}
	req.AddIceControlling(tiebreaker)
	req.AddUseCandidate()
	req.AddPriority(basePriority | uint32(b.rand.Intn(1<<8))) //nolint:gosec // priority jitter, not security-sensitive
	req.AddMessageIntegrity(rec.PeerSDP.ICEPwd())
	req.AddFingerprint()

	_, err = sock.SendTo(addr, req.Marshal())

	return err
}

func randomTiebreaker() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b[:]), nil
}

func toUDPAddr(addr net.Addr) (*net.UDPAddr, error) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a, nil
	case *net.TCPAddr:
		return &net.UDPAddr{IP: a.IP, Port: a.Port, Zone: a.Zone}, nil
	default:
		return nil, errUnsupportedAddrKind
	}
}

type discardMetrics struct{}

func (discardMetrics) SessionAdded()                 {}
func (discardMetrics) SessionRemoved()               {}
func (discardMetrics) SessionExpired()               {}
func (discardMetrics) BindingRequestAccepted()       {}
func (discardMetrics) BindingRequestRejected(string) {}
func (discardMetrics) BindingResponseConnected()     {}
func (discardMetrics) BindingResponseDropped()       {}
func (discardMetrics) BytesForwarded(int)            {}
