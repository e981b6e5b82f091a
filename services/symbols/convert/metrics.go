// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package convert

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tracerName is the OTel tracer name for the conversion engine.
const tracerName = "symbols.convert"

// Package-level Prometheus metrics for the conversion engine.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// conversionsTotal counts computed conversions. Cache hits are not
	// counted here.
	//
	// Labels:
	//   - kind: merged symbol kind, or the platform kind on failure
	//   - outcome: "success" or "error"
	conversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symbols",
			Subsystem: "convert",
			Name:      "conversions_total",
			Help:      "Total number of computed conversions.",
		},
		[]string{"kind", "outcome"},
	)

	// cacheLookupsTotal counts conversion cache lookups.
	//
	// Labels:
	//   - result: "hit", "wait" or "miss"
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symbols",
			Subsystem: "convert",
			Name:      "cache_lookups_total",
			Help:      "Total conversion cache lookups by result.",
		},
		[]string{"result"},
	)

	// assemblyDuration measures container assembly.
	//
	// Labels:
	//   - variant: "class", "facade", "multi_file_facade", "synthetic_type", "foreign_type"
	assemblyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "symbols",
			Subsystem: "convert",
			Name:      "assembly_duration_seconds",
			Help:      "Duration of container assembly in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"variant"},
	)

	// syntheticMembersTotal counts platform members with no metadata
	// counterpart.
	//
	// Labels:
	//   - reason: "compiler_artifact", "unaccounted", "facade_delegate", ...
	syntheticMembersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symbols",
			Subsystem: "convert",
			Name:      "synthetic_members_total",
			Help:      "Total platform members classified as synthetic, by reason.",
		},
		[]string{"reason"},
	)
)

func recordAssembly(variant string, d time.Duration) {
	assemblyDuration.WithLabelValues(variant).Observe(d.Seconds())
}

func recordConversion(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	conversionsTotal.WithLabelValues(kind, outcome).Inc()
}
