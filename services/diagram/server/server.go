// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a graph over HTTP and relays its events to
// websocket clients.
//
// The graph itself is single-threaded. Server serializes every access to it
// behind one mutex, so handlers, document reloads and the relay never
// observe a graph mid-mutation.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/LogicGraph/services/diagram/events"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
	"github.com/AleutianAI/LogicGraph/services/diagram/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// ServiceName labels HTTP spans.
	// Default: "logicgraph"
	ServiceName string

	// MovingEventsPerSecond and MovingBurst throttle node:moving per client.
	// Default: 30 per second, burst 5
	MovingEventsPerSecond float64
	MovingBurst           int

	// MetricsHandler serves /metrics.
	// Default: telemetry.MetricsHandler()
	MetricsHandler http.Handler

	// Logger receives request and relay logs.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server owns a graph and serves it.
//
// Thread Safety: Safe for concurrent use. The graph passed to New must not
// be touched by anyone else afterwards.
type Server struct {
	mu        sync.Mutex
	graph     *graph.Graph
	reloading bool

	hub    *Hub
	router *gin.Engine
	logger *slog.Logger
	subID  string
}

// New wraps g and subscribes the event relay to it.
func New(g *graph.Graph, opts Options) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = "logicgraph"
	}
	if opts.MovingEventsPerSecond <= 0 {
		opts.MovingEventsPerSecond = 30
	}
	if opts.MovingBurst <= 0 {
		opts.MovingBurst = 5
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = telemetry.MetricsHandler()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		graph:  g,
		hub:    NewHub(rate.Limit(opts.MovingEventsPerSecond), opts.MovingBurst, opts.Logger),
		logger: opts.Logger,
	}
	s.subID = g.OnAny(s.relay)
	s.router = s.routes(opts)
	return s
}

// relay runs inside graph emits, so s.mu is already held by the mutator.
func (s *Server) relay(e events.Event) {
	if s.reloading {
		return
	}
	s.hub.Broadcast(toWire(e))
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.router }

// Hub returns the event relay.
func (s *Server) Hub() *Hub { return s.hub }

// Reload replaces the graph's content with data.
//
// Description:
//
//	Per-entity events produced while loading are not relayed; clients get
//	a single graph:reloaded event and are expected to refetch.
//
// Errors:
//
//	graph.ErrInvalidDocument from FromData. The graph is left untouched.
func (s *Server) Reload(ctx context.Context, data graph.GraphData) (graph.LoadReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reloading = true
	report, err := s.graph.FromData(ctx, data)
	s.reloading = false

	if err != nil {
		reloadTotal.WithLabelValues("error").Inc()
		return report, err
	}
	reloadTotal.WithLabelValues("ok").Inc()
	s.hub.Broadcast(WireEvent{Type: string(EventGraphReloaded)})

	logger := telemetry.LoggerWithTrace(ctx, s.logger)
	if report.Complete() {
		logger.Info("graph reloaded", "nodes", report.Nodes, "edges", report.Edges)
	} else {
		logger.Warn("graph reloaded with skipped entities",
			"nodes", report.Nodes,
			"edges", report.Edges,
			"skipped_nodes", report.SkippedNodes,
			"skipped_edges", report.SkippedEdges,
		)
	}
	return report, nil
}

// ReloadFile reads the document at path and reloads it.
func (s *Server) ReloadFile(ctx context.Context, path string) (graph.LoadReport, error) {
	data, err := graph.ReadDocument(path)
	if err != nil {
		reloadTotal.WithLabelValues("error").Inc()
		return graph.LoadReport{}, err
	}
	return s.Reload(ctx, data)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
//
// Outputs:
//
//	error - nil after a clean shutdown; the listen error otherwise.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("server listening", "addr", addr)

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked and invisible to Shutdown.
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close disconnects relay clients and detaches from the graph.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subID != "" {
		s.graph.Off(s.subID)
		s.subID = ""
	}
	s.hub.Close()
}

// requestLogger logs each request at debug level with its trace ID.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		telemetry.LoggerWithTrace(c.Request.Context(), logger).Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
