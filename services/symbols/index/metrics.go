// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package index

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildsTotal counts Build calls.
	//
	// Labels:
	//   - outcome: "success" or "error"
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "symbols",
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total number of index builds.",
		},
		[]string{"outcome"},
	)

	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "symbols",
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Duration of index builds, graph traversal included.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
	)

	indexedSymbols = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "symbols",
			Subsystem: "index",
			Name:      "last_build_symbols",
			Help:      "Number of symbols visited by the most recent build.",
		},
	)

	searchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "symbols",
			Subsystem: "index",
			Name:      "searches_total",
			Help:      "Total number of completed searches.",
		},
	)
)

func recordBuild(d time.Duration, symbols int, err error) {
	buildDuration.Observe(d.Seconds())
	if err != nil {
		buildsTotal.WithLabelValues("error").Inc()
		return
	}
	buildsTotal.WithLabelValues("success").Inc()
	indexedSymbols.Set(float64(symbols))
}
