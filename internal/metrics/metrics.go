// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package metrics holds the prometheus metrics of the compiler and the scheduler.
//
// They are registered in the default registry: a binary exposing it (e.g. with promhttp) gets them for free.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KernelSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpuplan_kernel_selections_total",
		Help: "Number of kernel selections, by primitive kind and selected kernel",
	}, []string{"kind", "kernel"})

	SelectionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpuplan_kernel_selection_failures_total",
		Help: "Number of primitives for which no kernel was suitable, by primitive kind",
	}, []string{"kind"})

	FusedPrimitives = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpuplan_fused_primitives_total",
		Help: "Number of primitives fused into their producer, by consumer kind",
	}, []string{"kind"})

	GroupBuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuplan_group_builds_total",
		Help: "Number of command lists built by execution groups",
	})

	GroupMutations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gpuplan_group_mutations_total",
		Help: "Number of command lists patched in place by execution groups",
	})

	DispatchUpdateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gpuplan_dispatch_update_errors_total",
		Help: "Number of dispatch geometry updates that failed for the concrete shapes of a request",
	}, []string{"kernel"})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpuplan_inference_duration_seconds",
		Help:    "Duration of inference requests, from submission to completion",
		Buckets: prometheus.DefBuckets,
	})

	CompileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gpuplan_compile_duration_seconds",
		Help:    "Duration of program compilations",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordSelection of kernel for a primitive of the given kind.
func RecordSelection(kind, kernel string) {
	KernelSelections.WithLabelValues(kind, kernel).Inc()
}

// RecordSelectionFailure for a primitive of the given kind.
func RecordSelectionFailure(kind string) {
	SelectionFailures.WithLabelValues(kind).Inc()
}

// RecordFusion of a consumer of the given kind.
func RecordFusion(kind string) {
	FusedPrimitives.WithLabelValues(kind).Inc()
}

// RecordGroupRun records whether an execution group run rebuilt its command list or mutated it.
func RecordGroupRun(rebuilt bool) {
	if rebuilt {
		GroupBuilds.Inc()
	} else {
		GroupMutations.Inc()
	}
}

// RecordDispatchUpdateError of the given kernel.
func RecordDispatchUpdateError(kernel string) {
	DispatchUpdateErrors.WithLabelValues(kernel).Inc()
}

// RecordInference duration.
func RecordInference(duration time.Duration) {
	InferenceDuration.Observe(duration.Seconds())
}

// RecordCompile duration.
func RecordCompile(duration time.Duration) {
	CompileDuration.Observe(duration.Seconds())
}
