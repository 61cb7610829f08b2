// SPDX-License-Identifier: MIT

package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSDP struct {
	ufrag string
	pwd   string
}

func (f fakeSDP) ICEUfrag() string { return f.ufrag }
func (f fakeSDP) ICEPwd() string   { return f.pwd }

type recordingObserver struct {
	transitions []State
}

func (o *recordingObserver) OnStateChanged(_ int64, newState State) {
	o.transitions = append(o.transitions, newState)
}

func (o *recordingObserver) OnDataReceived(int64, []byte) {}

type fakeSender struct{}

func (fakeSender) SendTo(net.Addr, []byte) (int, error) { return 0, nil }
func (fakeSender) Network() string                      { return "udp" }

func TestAddSessionRejectsDuplicateUfrag(t *testing.T) {
	reg := NewRegistry(nil, nil)

	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	_, err := reg.AddSession(1, offer, peer, 30*time.Second)
	require.NoError(t, err)

	_, err = reg.AddSession(2, offer, peer, 30*time.Second)
	assert.ErrorIs(t, err, ErrDuplicateUfrag)

	rec, ok := reg.LookupByUfrag("abc123")
	require.True(t, ok)
	assert.Equal(t, int64(1), rec.SessionID)
}

func TestPromoteInsertsIntoActiveTables(t *testing.T) {
	reg := NewRegistry(nil, nil)
	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	rec, err := reg.AddSession(1, offer, peer, 30*time.Second)
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 54321}
	reg.Promote(rec, fakeSender{}, addr)

	byAddr, ok := reg.LookupByAddr(addr)
	require.True(t, ok)
	assert.Equal(t, rec, byAddr)

	byID, ok := reg.LookupBySessionID(1)
	require.True(t, ok)
	assert.Equal(t, rec, byID)

	assert.Equal(t, Checking, rec.State())
}

func TestEvictFailedRemovesFromAllTables(t *testing.T) {
	reg := NewRegistry(nil, nil)
	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	rec, err := reg.AddSession(1, offer, peer, 30*time.Second)
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 54321}
	reg.Promote(rec, fakeSender{}, addr)

	reg.EvictFailed(rec)

	_, ok := reg.LookupByUfrag("abc123")
	assert.False(t, ok)
	_, ok = reg.LookupByAddr(addr)
	assert.False(t, ok)
	_, ok = reg.LookupBySessionID(1)
	assert.False(t, ok)
	assert.Equal(t, Failed, rec.State())
}

func TestRemoveSessionIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil, nil)
	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	_, err := reg.AddSession(1, offer, peer, 30*time.Second)
	require.NoError(t, err)

	assert.True(t, reg.RemoveSession(1))
	assert.False(t, reg.RemoveSession(1))

	_, ok := reg.LookupByUfrag("abc123")
	assert.False(t, ok)
}

func TestRemoveSessionAfterPromoteClearsActiveTables(t *testing.T) {
	reg := NewRegistry(nil, nil)
	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	rec, err := reg.AddSession(1, offer, peer, 30*time.Second)
	require.NoError(t, err)

	addr := &net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 54321}
	reg.Promote(rec, fakeSender{}, addr)

	assert.True(t, reg.RemoveSession(1))
	_, ok := reg.LookupByAddr(addr)
	assert.False(t, ok)
	_, ok = reg.LookupByUfrag("abc123")
	assert.False(t, ok)
}

func TestSweepExpiredTransitionsAndRemoves(t *testing.T) {
	obs := &recordingObserver{}
	reg := NewRegistry([]Observer{obs}, nil)
	offer := fakeSDP{ufrag: "abc123", pwd: "P1"}
	peer := fakeSDP{ufrag: "xyz789", pwd: "P2"}

	rec, err := reg.AddSession(1, offer, peer, 100*time.Millisecond)
	require.NoError(t, err)
	rec.RefreshDeadline(time.Now().Add(-time.Second)) // force expiry

	expired := reg.SweepExpired(time.Now())
	require.Len(t, expired, 1)
	assert.Equal(t, Disconnected, expired[0].State())

	_, ok := reg.LookupByUfrag("abc123")
	assert.False(t, ok)

	assert.Contains(t, obs.transitions, Disconnected)
}

func TestGenerateUfragIsUniqueAndCorrectLength(t *testing.T) {
	reg := NewRegistry(nil, nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		u, err := reg.GenerateUfrag()
		require.NoError(t, err)
		assert.Len(t, u, ufragLength)
		assert.False(t, seen[u])
		seen[u] = true
	}
}
