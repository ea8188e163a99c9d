// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics holds the Prometheus collectors for the editorial core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Workflow metrics
	WorkflowOperationsTotal *prometheus.CounterVec
	AutoRejectsTotal        prometheus.Counter

	// Security metrics
	RateLimitRejectionsTotal *prometheus.CounterVec
	AuditWritesTotal         *prometheus.CounterVec

	// Scheduler metrics
	AuditRowsPurgedTotal  prometheus.Counter
	RateLimitEntriesSwept prometheus.Counter
}

// New creates and registers all metrics on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),

		WorkflowOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteflow_workflow_operations_total",
				Help: "Workflow operations by outcome kind",
			},
			[]string{"operation", "outcome"},
		),
		AutoRejectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "siteflow_workflow_auto_rejects_total",
				Help: "Pending changes rejected because applying them failed",
			},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteflow_ratelimit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"policy"},
		),
		AuditWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteflow_audit_writes_total",
				Help: "Audit log writes by status",
			},
			[]string{"status"},
		),

		AuditRowsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "siteflow_audit_rows_purged_total",
				Help: "Audit log rows removed by the retention job",
			},
		),
		RateLimitEntriesSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "siteflow_ratelimit_entries_swept_total",
				Help: "Expired rate limit entries dropped by the sweep job",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.WorkflowOperationsTotal,
		m.AutoRejectsTotal,
		m.RateLimitRejectionsTotal,
		m.AuditWritesTotal,
		m.AuditRowsPurgedTotal,
		m.RateLimitEntriesSwept,
	)

	return m
}

// Operation counts one workflow operation outcome.
func (m *Metrics) Operation(operation, outcome string) {
	if m == nil {
		return
	}
	m.WorkflowOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// AutoReject counts one auto-rejected change.
func (m *Metrics) AutoReject() {
	if m == nil {
		return
	}
	m.AutoRejectsTotal.Inc()
}

// RateLimited counts one rejection under policy.
func (m *Metrics) RateLimited(policy string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(policy).Inc()
}

// AuditWrite counts one audit write attempt.
func (m *Metrics) AuditWrite(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.AuditWritesTotal.WithLabelValues(status).Inc()
}

// AuditPurged adds n purged audit rows.
func (m *Metrics) AuditPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AuditRowsPurgedTotal.Add(float64(n))
}

// Swept adds n swept limiter entries.
func (m *Metrics) Swept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RateLimitEntriesSwept.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP requests. The route label is the chi route
// pattern so ids in paths do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
