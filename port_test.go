// SPDX-License-Identifier: MIT

package iceport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AirenSoft/ice-port/internal/stun"
	"github.com/AirenSoft/ice-port/internal/turnchannel"
)

type fixtureDescription struct {
	ufrag, pwd string
}

func (d fixtureDescription) ICEUfrag() string          { return d.ufrag }
func (d fixtureDescription) ICEPwd() string            { return d.pwd }
func (d fixtureDescription) Candidates() []Candidate   { return nil }

type fakePhysicalPort struct {
	mu       sync.Mutex
	sent     [][]byte
	network  string
	closed   bool
}

func newFakePhysicalPort(network string) *fakePhysicalPort {
	return &fakePhysicalPort{network: network}
}

func (f *fakePhysicalPort) SendTo(_ net.Addr, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)

	return len(data), nil
}

func (f *fakePhysicalPort) LocalAddr() net.Addr { return &net.UDPAddr{Port: 1} }
func (f *fakePhysicalPort) Network() string     { return f.network }
func (f *fakePhysicalPort) Close() error        { f.closed = true; return nil }

func (f *fakePhysicalPort) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

func (f *fakePhysicalPort) message(i int) *stun.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, err := stun.Parse(f.sent[i])
	if err != nil {
		return nil
	}

	return msg
}

type capturingObserver struct {
	mu          sync.Mutex
	states      []State
	dataDelivered [][]byte
}

func (o *capturingObserver) OnStateChanged(_ PhysicalPort, _ SessionInfo, newState State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, newState)
}

func (o *capturingObserver) OnDataReceived(_ PhysicalPort, _ SessionInfo, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	o.dataDelivered = append(o.dataDelivered, cp)
}

func (o *capturingObserver) snapshot() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]State, len(o.states))
	copy(out, o.states)

	return out
}

func newTestPort(obs Observer) *Port {
	loggerFactory := logging.NewDefaultLoggerFactory()
	cfg := Config{LoggerFactory: loggerFactory}
	if obs != nil {
		return New(cfg, obs)
	}

	return New(cfg)
}

func buildRequest(t *testing.T, localUfrag, remoteUfrag, password string) []byte {
	t.Helper()
	req, err := stun.New(stun.ClassRequest, stun.MethodBinding)
	require.NoError(t, err)
	req.AddUsername(localUfrag, remoteUfrag)
	req.AddMessageIntegrity(password)
	req.AddFingerprint()

	return req.Marshal()
}

func TestHappyPathUDP(t *testing.T) {
	obs := &capturingObserver{}
	port := newTestPort(obs)
	defer port.Close()

	require.NoError(t, port.AddSession(1, fixtureDescription{"abc123", "P1"}, fixtureDescription{"xyz789", "P2"}))

	sock := newFakePhysicalPort("udp")
	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 54321}

	port.OnData(uuid.Nil, sock, addr, buildRequest(t, "abc123", "xyz789", "P1"))

	require.Eventually(t, func() bool { return sock.count() == 2 }, time.Second, 5*time.Millisecond)

	successResp := sock.message(0)
	require.NotNil(t, successResp)
	assert.Equal(t, stun.ClassSuccessResponse, successResp.Class)
	xorAddr, err := successResp.XORMappedAddress()
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", xorAddr.IP.String())
	assert.Equal(t, 54321, xorAddr.Port)

	serverReq := sock.message(1)
	require.NotNil(t, serverReq)
	assert.Equal(t, stun.ClassRequest, serverReq.Class)
	local, remote, err := serverReq.Username()
	require.NoError(t, err)
	assert.Equal(t, "xyz789", local)
	assert.Equal(t, "abc123", remote)

	// Deliver the peer's success-response, integrity-keyed under P1.
	resp, err := stun.New(stun.ClassSuccessResponse, stun.MethodBinding)
	require.NoError(t, err)
	resp.AddMessageIntegrity("P1")
	resp.AddFingerprint()
	port.OnData(uuid.Nil, sock, addr, resp.Marshal())

	rec, ok := port.registry.LookupBySessionID(1)
	require.True(t, ok)
	assert.Equal(t, Connected, rec.State())
}

func TestIntegrityFailureEvicts(t *testing.T) {
	port := newTestPort(nil)
	defer port.Close()

	require.NoError(t, port.AddSession(2, fixtureDescription{"abc123", "P1"}, fixtureDescription{"xyz789", "P2"}))

	sock := newFakePhysicalPort("udp")
	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 54321}

	port.OnData(uuid.Nil, sock, addr, buildRequest(t, "abc123", "xyz789", "wrong-password"))

	_, ok := port.registry.LookupByUfrag("abc123")
	assert.False(t, ok)
	assert.Equal(t, 0, sock.count())
}

func TestExpiration(t *testing.T) {
	obs := &capturingObserver{}
	port := newTestPort(obs)
	defer port.Close()

	port.expireCfg = 100 * time.Millisecond
	require.NoError(t, port.AddSession(3, fixtureDescription{"exp111", "P1"}, fixtureDescription{"exp222", "P2"}))

	rec, ok := port.registry.LookupByUfrag("exp111")
	require.True(t, ok)
	rec.RefreshDeadline(time.Now().Add(-time.Second))

	require.Eventually(t, func() bool {
		states := obs.snapshot()
		for _, s := range states {
			if s == Disconnected {
				return true
			}
		}

		return false
	}, 1100*time.Millisecond, 10*time.Millisecond)

	assert.False(t, port.RemoveSession(3))
}

func TestTCPReframing(t *testing.T) {
	obs := &capturingObserver{}
	port := newTestPort(obs)
	defer port.Close()

	require.NoError(t, port.AddSession(4, fixtureDescription{"tcp111", "P1"}, fixtureDescription{"tcp222", "P2"}))

	sock := newFakePhysicalPort("tcp")
	addr := &net.TCPAddr{IP: net.ParseIP("198.51.100.9"), Port: 4000}

	connID := uuid.New()
	port.OnConnected(connID)
	defer port.OnDisconnected(connID)

	// First promote the session over an initial binding request so the
	// address table has an entry the channel-data payload can be forwarded
	// through.
	req := buildRequest(t, "tcp111", "tcp222", "P1")

	rtpPayload := make([]byte, 12)
	rtpPayload[0] = 0x80 // RTP version bits, classifies as RTP/RTCP

	channelFrame := turnchannel.Encode(0x4001, rtpPayload)
	// Pad to a 4-byte boundary the way the wire format requires for TCP.
	for len(channelFrame)%4 != 0 {
		channelFrame = append(channelFrame, 0)
	}

	stream := append(append([]byte{}, req...), channelFrame...)

	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		port.OnData(connID, sock, addr, stream[i:end])
	}

	require.Eventually(t, func() bool { return sock.count() >= 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(obs.dataDelivered) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, rtpPayload, obs.dataDelivered[0])
}

func TestDuplicateUfrag(t *testing.T) {
	port := newTestPort(nil)
	defer port.Close()

	require.NoError(t, port.AddSession(5, fixtureDescription{"dup111", "P1"}, fixtureDescription{"dup222", "P2"}))
	err := port.AddSession(6, fixtureDescription{"dup111", "P1"}, fixtureDescription{"dup222", "P2"})
	require.Error(t, err)

	_, ok := port.registry.LookupByUfrag("dup111")
	assert.True(t, ok)
}

func TestSendWithoutBindingFails(t *testing.T) {
	port := newTestPort(nil)
	defer port.Close()

	require.NoError(t, port.AddSession(7, fixtureDescription{"snd111", "P1"}, fixtureDescription{"snd222", "P2"}))

	ok := port.Send(7, []byte("hello"))
	assert.False(t, ok)
}
