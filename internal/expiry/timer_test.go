// SPDX-License-Identifier: MIT

package expiry

import (
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AirenSoft/ice-port/internal/session"
)

type expiryTestDescription struct {
	ufrag string
	pwd   string
}

func (d expiryTestDescription) ICEUfrag() string { return d.ufrag }
func (d expiryTestDescription) ICEPwd() string   { return d.pwd }

func TestTimerSweepsExpiredSessions(t *testing.T) {
	reg := session.NewRegistry(nil, nil)
	log := logging.NewDefaultLoggerFactory().NewLogger("expiry_test")

	offer := expiryTestDescription{ufrag: "local1", pwd: "p1"}
	peer := expiryTestDescription{ufrag: "remote1", pwd: "p2"}

	rec, err := reg.AddSession(1, offer, peer, time.Millisecond)
	require.NoError(t, err)
	rec.RefreshDeadline(time.Now().Add(-time.Second))

	timer := Start(reg, log)
	defer timer.Close()

	require.Eventually(t, func() bool {
		_, ok := reg.LookupByUfrag("local1")

		return !ok
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, session.Disconnected, rec.State())
}

func TestTimerCloseStopsSweeping(t *testing.T) {
	reg := session.NewRegistry(nil, nil)
	log := logging.NewDefaultLoggerFactory().NewLogger("expiry_test")

	timer := Start(reg, log)
	timer.Close()

	offer := expiryTestDescription{ufrag: "local2", pwd: "p1"}
	peer := expiryTestDescription{ufrag: "remote2", pwd: "p2"}

	rec, err := reg.AddSession(2, offer, peer, time.Millisecond)
	require.NoError(t, err)
	rec.RefreshDeadline(time.Now().Add(-time.Second))

	time.Sleep(50 * time.Millisecond)

	_, ok := reg.LookupByUfrag("local2")
	assert.True(t, ok, "closed timer must not sweep sessions added after Close")
}
