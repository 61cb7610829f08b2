// SPDX-License-Identifier: MIT

package session

import (
	"crypto/rand"
	"net"
	"sync"
	"time"
)

// Observer is the capability pair every registered observer implements
// (spec.md §6, §9 "polymorphism"). It is defined here, rather than
// imported from the top-level package, so this package has no dependency
// on it. The top-level Observer is a separate interface with richer
// arguments; the top-level Port bridges the two with an adapter.
type Observer interface {
	OnStateChanged(sessionID int64, newState State)
	OnDataReceived(sessionID int64, data []byte)
}

// MetricsSink receives ambient counters without the registry knowing
// anything about Prometheus (spec.md SPEC_FULL.md §4.10). A nil sink is
// valid: every method is a no-op guarded at the call site.
type MetricsSink interface {
	SessionAdded()
	SessionRemoved()
	SessionExpired()
	BindingRequestAccepted()
	BindingRequestRejected(reason string)
	BindingResponseConnected()
	BindingResponseDropped()
	BytesForwarded(n int)
}

const ufragAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const ufragLength = 6

const maxUfragGenerationAttempts = 64

// Registry is the three-table, two-lock bookkeeping structure of
// spec.md §4.5. ufragMu guards byUfrag, which holds every live session,
// pending or promoted, until it is removed or expires; activeMu jointly
// guards byAddr and bySessionID (active sessions). Whenever both locks are
// needed, ufragMu is always acquired first (spec.md §5 ordering rule).
type Registry struct {
	ufragMu sync.Mutex
	byUfrag map[string]*Record

	activeMu    sync.Mutex
	byAddr      map[string]*Record
	bySessionID map[int64]*Record

	observers []Observer
	metrics   MetricsSink
}

// NewRegistry constructs an empty registry. observers is copied so callers
// can't mutate it after construction, matching spec.md §4.5's requirement
// that reads never hold a lock across an observer callback: the slice
// itself is immutable, so iterating it needs no lock at all.
func NewRegistry(observers []Observer, metrics MetricsSink) *Registry {
	obs := make([]Observer, len(observers))
	copy(obs, observers)

	return &Registry{
		byUfrag:     make(map[string]*Record),
		byAddr:      make(map[string]*Record),
		bySessionID: make(map[int64]*Record),
		observers:   obs,
		metrics:     metrics,
	}
}

func (r *Registry) notifyStateChanged(id int64, s State) {
	for _, o := range r.observers {
		o.OnStateChanged(id, s)
	}
}

// NotifyDataReceived invokes every observer's OnDataReceived, in
// registration order, outside of any registry lock (spec.md §4.7).
func (r *Registry) NotifyDataReceived(id int64, data []byte) {
	for _, o := range r.observers {
		o.OnDataReceived(id, data)
	}
}

func (r *Registry) metricsOrNoop() MetricsSink {
	if r.metrics == nil {
		return noopMetrics{}
	}

	return r.metrics
}

// AddSession inserts a new pending session, in state New, keyed by its
// offer's local ufrag. Duplicate ufrags are refused; the first add wins
// (spec.md §4.5, §7).
func (r *Registry) AddSession(sessionID int64, offer, peer Description, expireAfter time.Duration) (*Record, error) {
	rec := NewRecord(sessionID, offer, peer, expireAfter)

	r.ufragMu.Lock()
	if _, exists := r.byUfrag[rec.LocalUfrag]; exists {
		r.ufragMu.Unlock()
		r.metricsOrNoop().BindingRequestRejected("duplicate-ufrag")

		return nil, ErrDuplicateUfrag
	}
	r.byUfrag[rec.LocalUfrag] = rec
	r.ufragMu.Unlock()

	r.metricsOrNoop().SessionAdded()
	r.notifyStateChanged(sessionID, New)

	return rec, nil
}

// LookupByUfrag returns the session pending or active under local ufrag.
func (r *Registry) LookupByUfrag(ufrag string) (*Record, bool) {
	r.ufragMu.Lock()
	defer r.ufragMu.Unlock()
	rec, ok := r.byUfrag[ufrag]

	return rec, ok
}

// LookupByAddr returns the active session bound to addr.
func (r *Registry) LookupByAddr(addr net.Addr) (*Record, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	rec, ok := r.byAddr[addr.String()]

	return rec, ok
}

// LookupBySessionID returns the active session with the given id.
func (r *Registry) LookupBySessionID(id int64) (*Record, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	rec, ok := r.bySessionID[id]

	return rec, ok
}

// LookupAny returns the session with the given id whether it is still
// pending (ufrag table only) or already active, for callers such as the
// state-change observer bridge that need a record's fields regardless of
// which tables it currently appears in.
func (r *Registry) LookupAny(sessionID int64) (*Record, bool) {
	if rec, ok := r.LookupBySessionID(sessionID); ok {
		return rec, true
	}

	r.ufragMu.Lock()
	defer r.ufragMu.Unlock()
	for _, rec := range r.byUfrag {
		if rec.SessionID == sessionID {
			return rec, true
		}
	}

	return nil, false
}

// Promote transitions rec from New to Checking and inserts it into the
// address and session-id tables atomically, per spec.md §4.6 step 6. It is
// a no-op (but still refreshes the binding) if rec is already past New.
func (r *Registry) Promote(rec *Record, sock Sender, addr net.Addr) {
	rec.Bind(sock, addr)

	r.activeMu.Lock()
	r.byAddr[addr.String()] = rec
	r.bySessionID[rec.SessionID] = rec
	r.activeMu.Unlock()

	if rec.State() != New {
		return
	}

	if prev := rec.SetState(Checking); prev == New {
		r.notifyStateChanged(rec.SessionID, Checking)
	}
}

// MarkConnected transitions rec to Connected if it isn't already, notifying
// observers exactly once (spec.md §4.6 process_binding_response step 3).
func (r *Registry) MarkConnected(rec *Record) {
	if prev := rec.SetState(Connected); prev != Connected {
		r.notifyStateChanged(rec.SessionID, Connected)
	}
}

// EvictFailed transitions rec to Failed and removes it from all three
// tables (spec.md §4.6 process_binding_request step 4, on integrity
// failure). ufragMu is acquired before activeMu, per the ordering rule.
func (r *Registry) EvictFailed(rec *Record) {
	rec.SetState(Failed)

	r.ufragMu.Lock()
	delete(r.byUfrag, rec.LocalUfrag)
	r.ufragMu.Unlock()

	r.activeMu.Lock()
	if addr := rec.RemoteAddr(); addr != nil {
		delete(r.byAddr, addr.String())
	}
	delete(r.bySessionID, rec.SessionID)
	r.activeMu.Unlock()

	r.notifyStateChanged(rec.SessionID, Failed)
}

// RemoveSession implements remove_session (spec.md §4.5): it is idempotent
// and removes the session from every table it currently appears in. It
// first attempts the active-session fast path, then falls back to scanning
// the pending (ufrag) table.
func (r *Registry) RemoveSession(sessionID int64) bool {
	r.activeMu.Lock()
	rec, ok := r.bySessionID[sessionID]
	if ok {
		delete(r.bySessionID, sessionID)
		if addr := rec.RemoteAddr(); addr != nil {
			delete(r.byAddr, addr.String())
		}
	}
	r.activeMu.Unlock()

	if !ok {
		r.ufragMu.Lock()
		for ufrag, candidate := range r.byUfrag {
			if candidate.SessionID == sessionID {
				delete(r.byUfrag, ufrag)
				rec = candidate
				ok = true

				break
			}
		}
		r.ufragMu.Unlock()
	} else {
		r.ufragMu.Lock()
		delete(r.byUfrag, rec.LocalUfrag)
		r.ufragMu.Unlock()
	}

	if !ok {
		return false
	}

	rec.SetState(Closed)
	r.metricsOrNoop().SessionRemoved()
	r.notifyStateChanged(sessionID, Closed)

	return true
}

// SweepExpired implements the two-phase eviction of spec.md §4.9: under
// ufragMu, collect every pending-table session whose deadline has passed,
// transition it to Disconnected, and remove it from the ufrag map; then,
// under activeMu, remove the same sessions from the address and
// session-id maps. Each critical section is held only long enough to
// mutate its own table.
func (r *Registry) SweepExpired(now time.Time) []*Record {
	var expired []*Record

	r.ufragMu.Lock()
	for ufrag, rec := range r.byUfrag {
		if rec.ExpireDeadline().Before(now) {
			rec.SetState(Disconnected)
			delete(r.byUfrag, ufrag)
			expired = append(expired, rec)
		}
	}
	r.ufragMu.Unlock()

	if len(expired) == 0 {
		return nil
	}

	r.activeMu.Lock()
	for _, rec := range expired {
		if addr := rec.RemoteAddr(); addr != nil {
			delete(r.byAddr, addr.String())
		}
		delete(r.bySessionID, rec.SessionID)
	}
	r.activeMu.Unlock()

	for _, rec := range expired {
		r.metricsOrNoop().SessionExpired()
		r.notifyStateChanged(rec.SessionID, Disconnected)
	}

	return expired
}

// GenerateUfrag returns a 6-character alphanumeric string drawn from a
// CSPRNG, retrying until it does not collide with any pending or active
// ufrag (spec.md §4.5, §6).
func (r *Registry) GenerateUfrag() (string, error) {
	for attempt := 0; attempt < maxUfragGenerationAttempts; attempt++ {
		candidate, err := randomUfrag()
		if err != nil {
			return "", err
		}

		r.ufragMu.Lock()
		_, collides := r.byUfrag[candidate]
		r.ufragMu.Unlock()

		if !collides {
			return candidate, nil
		}
	}

	return "", errNoAllocatedUfrag
}

func randomUfrag() (string, error) {
	buf := make([]byte, ufragLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, ufragLength)
	for i, b := range buf {
		out[i] = ufragAlphabet[int(b)%len(ufragAlphabet)]
	}

	return string(out), nil
}

type noopMetrics struct{}

func (noopMetrics) SessionAdded()                    {}
func (noopMetrics) SessionRemoved()                  {}
func (noopMetrics) SessionExpired()                  {}
func (noopMetrics) BindingRequestAccepted()          {}
func (noopMetrics) BindingRequestRejected(string)    {}
func (noopMetrics) BindingResponseConnected()        {}
func (noopMetrics) BindingResponseDropped()          {}
func (noopMetrics) BytesForwarded(int)               {}
