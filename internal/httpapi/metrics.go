// ABOUTME: Prometheus collectors for HTTP traffic, procedure outcomes, and gate decisions.
// ABOUTME: Each server owns its registry, exposed on /metrics.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389-research/chirp/internal/auth"
)

const metricsNamespace = "chirp"

// Metrics holds the server's collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	rpcCalls      *prometheus.CounterVec
	gateDecisions *prometheus.CounterVec
	postsCreated  prometheus.Counter
}

// NewMetrics creates and registers the server collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
			},
			[]string{"method", "route"},
		),
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "Procedure calls by procedure and result code.",
			},
			[]string{"procedure", "code"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "gate_decisions_total",
				Help:      "Auth gate decisions by outcome.",
			},
			[]string{"decision"},
		),
		postsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "posts",
				Name:      "created_total",
				Help:      "Posts created.",
			},
		),
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.rpcCalls,
		m.gateDecisions,
		m.postsCreated,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDecision counts a gate decision.
func (m *Metrics) ObserveDecision(d auth.Decision) {
	m.gateDecisions.WithLabelValues(d.String()).Inc()
}

func (m *Metrics) observeCall(procedure, code string) {
	m.rpcCalls.WithLabelValues(procedure, code).Inc()
}

// Instrument records request counts and latency per matched route template.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
