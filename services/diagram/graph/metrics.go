// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("logicgraph.graph")
	meter  = otel.Meter("logicgraph.graph")
)

// Metrics for graph operations.
var (
	mutationsTotal metric.Int64Counter
	queryLatency   metric.Float64Histogram
	queryResults   metric.Int64Histogram
	loadLatency    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		mutationsTotal, err = meter.Int64Counter(
			"logicgraph_graph_mutations_total",
			metric.WithDescription("Graph mutations by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryLatency, err = meter.Float64Histogram(
			"logicgraph_graph_query_duration_seconds",
			metric.WithDescription("Duration of spatial queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryResults, err = meter.Int64Histogram(
			"logicgraph_graph_query_results",
			metric.WithDescription("Entities returned per spatial query"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loadLatency, err = meter.Float64Histogram(
			"logicgraph_graph_load_duration_seconds",
			metric.WithDescription("Duration of document loads"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordMutation counts one mutation.
func recordMutation(op string, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	mutationsTotal.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", success),
	))
}

// recordQuery records latency and result size of a spatial query.
func recordQuery(kind string, duration time.Duration, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	ctx := context.Background()
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryResults.Record(ctx, int64(resultCount), attrs)
}

// recordLoad records a document load.
func recordLoad(ctx context.Context, duration time.Duration, report LoadReport, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	loadLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int("nodes_loaded", report.Nodes),
		attribute.Int("edges_loaded", report.Edges),
		attribute.Int("nodes_skipped", len(report.SkippedNodes)),
		attribute.Int("edges_skipped", len(report.SkippedEdges)),
	)
}
