// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters/histograms for the processing
// pipeline. Every method is nil-safe so instrumentation can be wired
// unconditionally and simply omitted when metrics are disabled (a nil
// *Metrics).
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	iterationsUsed prometheus.Histogram

	proposalsScored *prometheus.CounterVec
	toolCallsTotal  *prometheus.CounterVec
	toolCallErrors  *prometheus.CounterVec

	sessionsActive *prometheus.GaugeVec
}

// NewMetrics builds a registered Metrics instance under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "conversa"
	}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "engine", Name: "runs_total",
		Help: "Total number of processing runs, by terminal status.",
	}, []string{"status"})

	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "engine", Name: "run_duration_seconds",
		Help: "Processing run duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"status"})

	m.iterationsUsed = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "engine", Name: "iterations_used",
		Help: "Preparation-loop iterations used per run.", Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	m.proposalsScored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "guideline", Name: "proposals_scored_total",
		Help: "Guideline propositions accepted at or above threshold, by source.",
	}, []string{"source"}) // "direct" or "connection"

	m.toolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total tool invocations, by service and tool name.",
	}, []string{"service", "tool"})

	m.toolCallErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total tool invocation errors, by service and tool name.",
	}, []string{"service", "tool"})

	m.sessionsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "session", Name: "runs_in_flight",
		Help: "Number of sessions with an in-flight processing run.",
	}, []string{"agent_id"})

	m.registry.MustRegister(m.runsTotal, m.runDuration, m.iterationsUsed, m.proposalsScored, m.toolCallsTotal, m.toolCallErrors, m.sessionsActive)
	return m
}

func (m *Metrics) RecordRun(status string, duration time.Duration, iterations int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.iterationsUsed.Observe(float64(iterations))
}

func (m *Metrics) RecordProposal(source string) {
	if m == nil {
		return
	}
	m.proposalsScored.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordToolCall(service, tool string, err error) {
	if m == nil {
		return
	}
	m.toolCallsTotal.WithLabelValues(service, tool).Inc()
	if err != nil {
		m.toolCallErrors.WithLabelValues(service, tool).Inc()
	}
}

func (m *Metrics) SetSessionsInFlight(agentID string, count int) {
	if m == nil {
		return
	}
	m.sessionsActive.WithLabelValues(agentID).Set(float64(count))
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
