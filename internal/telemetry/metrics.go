// Package telemetry holds the Prometheus counters shared by the HTTP front
// door and the datagram relay.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "formrelay"

// Result label values.
const (
	ResultAccepted    = "accepted"
	ResultRejected    = "rejected"
	ResultSent        = "sent"
	ResultFailed      = "failed"
	ResultStored      = "stored"
	ResultDecodeError = "decode_error"
	ResultStoreError  = "store_error"
)

// Metrics groups the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	submission *prometheus.CounterVec
	sent       *prometheus.CounterVec
	received   *prometheus.CounterVec
}

// New registers the counters plus Go runtime and process collectors on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		submission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Form submissions handled by the HTTP front door, by result.",
		}, []string{"result"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_sent_total",
			Help:      "Datagrams the sender attempted to transmit, by result.",
		}, []string{"result"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_received_total",
			Help:      "Datagrams read by the receiver, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.submission, m.sent, m.received)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submission(result string) {
	if m == nil {
		return
	}
	m.submission.WithLabelValues(result).Inc()
}

func (m *Metrics) Sent(result string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(result).Inc()
}

func (m *Metrics) Received(result string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(result).Inc()
}
