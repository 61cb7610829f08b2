// SPDX-License-Identifier: MIT

package iceport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements internal/session.MetricsSink on top of
// prometheus/client_golang, following the counter-per-outcome style
// arzzra-soft_phone's media manager uses for its own call counters.
// Recording never blocks and never runs while a registry lock is held; the
// registry always increments after releasing the relevant lock.
type Metrics struct {
	sessionsTotal         *prometheus.CounterVec
	sessionsActive        *prometheus.GaugeVec
	bindingRequestsTotal  *prometheus.CounterVec
	bindingResponsesTotal *prometheus.CounterVec
	bytesForwardedTotal   prometheus.Counter

	statesMu sync.Mutex
	states   map[int64]State
}

// NewMetrics registers the ICE port's counters against reg. A nil reg
// registers against prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ice_port_sessions_total",
			Help: "Sessions created, removed, or expired by the ICE port.",
		}, []string{"event"}),
		bindingRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ice_port_binding_requests_total",
			Help: "Incoming STUN binding requests processed by the ICE port.",
		}, []string{"result"}),
		bindingResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ice_port_binding_responses_total",
			Help: "Incoming STUN binding responses processed by the ICE port.",
		}, []string{"result"}),
		sessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ice_port_sessions_active",
			Help: "Sessions currently held in the registry, by state.",
		}, []string{"state"}),
		bytesForwardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ice_port_bytes_forwarded_total",
			Help: "Application-layer bytes forwarded to observers.",
		}),
		states: make(map[int64]State),
	}

	reg.MustRegister(m.sessionsTotal, m.sessionsActive, m.bindingRequestsTotal, m.bindingResponsesTotal, m.bytesForwardedTotal)

	return m
}

// SessionStateChanged moves sessionID's contribution to ice_port_sessions_active
// from its previously recorded state (if any) to newState. Closed/removed
// sessions are dropped from the gauge entirely rather than parked in a
// "closed" bucket, since RemoveSession deletes the record outright.
func (m *Metrics) SessionStateChanged(sessionID int64, newState State) {
	m.statesMu.Lock()
	defer m.statesMu.Unlock()

	if prev, ok := m.states[sessionID]; ok {
		m.sessionsActive.WithLabelValues(prev.String()).Dec()
	}

	if newState == Closed {
		delete(m.states, sessionID)

		return
	}

	m.states[sessionID] = newState
	m.sessionsActive.WithLabelValues(newState.String()).Inc()
}

func (m *Metrics) SessionAdded()   { m.sessionsTotal.WithLabelValues("added").Inc() }
func (m *Metrics) SessionRemoved() { m.sessionsTotal.WithLabelValues("removed").Inc() }
func (m *Metrics) SessionExpired() { m.sessionsTotal.WithLabelValues("expired").Inc() }

func (m *Metrics) BindingRequestAccepted() {
	m.bindingRequestsTotal.WithLabelValues("accepted").Inc()
}

func (m *Metrics) BindingRequestRejected(reason string) {
	m.bindingRequestsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) BindingResponseConnected() {
	m.bindingResponsesTotal.WithLabelValues("connected").Inc()
}

func (m *Metrics) BindingResponseDropped() {
	m.bindingResponsesTotal.WithLabelValues("dropped").Inc()
}

func (m *Metrics) BytesForwarded(n int) {
	m.bytesForwardedTotal.Add(float64(n))
}
