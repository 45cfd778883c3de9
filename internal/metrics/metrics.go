// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes the prometheus/client_golang collectors shared
// across the planner, executor, drift detector, and hash cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forjar"

var (
	// PlanStepDuration observes how long a single resource's hash-and-diff
	// step takes during planning, labeled by resource kind.
	PlanStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "step_duration_seconds",
		Help:      "Duration of a single resource's plan step (hash + diff).",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// PlanActionsTotal counts planned actions by kind and action.
	PlanActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "actions_total",
		Help:      "Count of planned resource actions by kind and action.",
	}, []string{"kind", "action"})

	// ApplyResourceDuration observes convergence duration per resource.
	ApplyResourceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "executor",
		Name:      "resource_duration_seconds",
		Help:      "Duration of converging a single resource.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind", "status"})

	// ApplyResourcesTotal counts convergence outcomes.
	ApplyResourcesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "executor",
		Name:      "resources_total",
		Help:      "Count of resource convergence outcomes by kind and status.",
	}, []string{"kind", "status"})

	// DriftResourcesTotal counts drift classifications.
	DriftResourcesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "drift",
		Name:      "resources_total",
		Help:      "Count of drift-checked resources by classification.",
	}, []string{"classification"})

	// HashCacheHitsTotal counts hash cache hit/miss outcomes.
	HashCacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "hashcache",
		Name:      "lookups_total",
		Help:      "Count of hash cache lookups by outcome (hit/miss).",
	}, []string{"outcome"})
)

// Registry returns a new *prometheus.Registry with every collector in this
// package already registered, for a caller that exposes a /metrics
// endpoint or push gateway.
func Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		PlanStepDuration,
		PlanActionsTotal,
		ApplyResourceDuration,
		ApplyResourcesTotal,
		DriftResourcesTotal,
		HashCacheHitsTotal,
	)
	return reg
}
