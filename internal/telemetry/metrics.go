/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry bundles Prometheus metrics and OpenTelemetry tracing.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Planner metrics
	PlannerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunabrain_planner_runs_total",
		Help: "Completed scheduling runs by terminal status.",
	}, []string{"status"})

	PlannerIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tunabrain_planner_iterations",
		Help:    "Iterations used per scheduling run.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	PlannerSlotsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tunabrain_planner_slots_committed_total",
		Help: "Slots committed by the planning loop.",
	})

	PlannerRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunabrain_planner_rejections_total",
		Help: "Fill actions rejected by the schedule store, by reason.",
	}, []string{"reason"})

	PolicyRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tunabrain_policy_request_duration_seconds",
		Help:    "Latency of decision policy invocations.",
		Buckets: prometheus.DefBuckets,
	})

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunabrain_api_requests_total",
		Help: "HTTP requests by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunabrain_api_request_duration_seconds",
		Help:    "HTTP request latency by method, endpoint and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunabrain_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunabrain_db_query_duration_seconds",
		Help:    "GORM operation latency by operation type and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	DBErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunabrain_db_errors_total",
		Help: "Database operation errors.",
	}, []string{"operation"})

	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tunabrain_db_connections_active",
		Help: "Open database connections.",
	})
)
