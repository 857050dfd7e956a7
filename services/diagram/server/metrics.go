// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// relayClients is the number of connected websocket clients
	relayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "logicgraph_relay_clients",
		Help: "Connected event relay clients",
	})

	// relaySent counts events queued for delivery by event type
	relaySent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicgraph_relay_events_total",
		Help: "Events queued to relay clients by type",
	}, []string{"type"})

	// relayDropped counts events not delivered to a client
	relayDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicgraph_relay_dropped_total",
		Help: "Events dropped per client by reason (throttled, backpressure)",
	}, []string{"reason"})

	// reloadTotal counts document reloads by result
	reloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logicgraph_reload_total",
		Help: "Document reloads by result",
	}, []string{"result"})
)
