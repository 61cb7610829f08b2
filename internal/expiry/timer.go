// SPDX-License-Identifier: MIT

// Package expiry implements the periodic garbage collector of spec.md §4.9:
// a single background task that fires every second and evicts sessions
// whose binding deadline has passed.
//
// The per-record time.AfterFunc pattern the teacher uses for allocation/
// permission/channel-bind lifetimes (internal/allocation/permission.go,
// internal/allocation/channel_bind.go in github.com/pion/turn) doesn't fit
// here: spec.md §4.9 calls for a single periodic sweep across the whole
// ufrag table rather than one timer per session, so this package is built
// on time.Ticker instead.
package expiry

import (
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/AirenSoft/ice-port/internal/session"
)

// Interval is the fixed sweep period mandated by spec.md §4.9.
const Interval = 1000 * time.Millisecond

// Timer periodically sweeps a session.Registry for expired sessions.
type Timer struct {
	registry *session.Registry
	log      logging.LeveledLogger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start launches the sweep goroutine and returns a Timer that Close stops.
func Start(registry *session.Registry, log logging.LeveledLogger) *Timer {
	t := &Timer{
		registry: registry,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go t.run()

	return t
}

func (t *Timer) run() {
	defer close(t.done)

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			expired := t.registry.SweepExpired(now)
			if len(expired) > 0 {
				t.log.Debugf("expiry: evicted %d session(s)", len(expired))
			}
		}
	}
}

// Close stops the sweep goroutine and waits for it to exit. Per spec.md §5
// "Cancellation / timeout", in-flight sweeps complete naturally; Close only
// prevents the next tick from starting.
func (t *Timer) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}
