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
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
)

const (
	sendBuffer   = 256
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxReadBytes = 512
)

// ErrHubClosed is returned when a client connects after Close.
var ErrHubClosed = errors.New("event hub closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// client is one websocket subscriber.
type client struct {
	id     string
	conn   *websocket.Conn
	send   chan WireEvent
	moving *rate.Limiter
	logger *slog.Logger
}

// Hub fans graph events out to websocket clients.
//
// Description:
//
//	Every client gets its own buffered queue and writer goroutine, so a
//	slow client never blocks the graph. When a queue is full the event is
//	dropped for that client only. node:moving events are additionally
//	rate limited per client; all other events are delivered unthrottled.
//
// Thread Safety: Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	closed  bool

	limit  rate.Limit
	burst  int
	logger *slog.Logger
}

// NewHub creates a hub. limit and burst configure the node:moving limiter
// each client receives.
func NewHub(limit rate.Limit, burst int, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*client),
		limit:   limit,
		burst:   burst,
		logger:  logger,
	}
}

// Broadcast queues ev for every client without blocking.
func (h *Hub) Broadcast(ev WireEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if ev.Type == string(graph.EventNodeMoving) && !c.moving.Allow() {
			relayDropped.WithLabelValues("throttled").Inc()
			continue
		}
		select {
		case c.send <- ev:
			relaySent.WithLabelValues(ev.Type).Inc()
		default:
			relayDropped.WithLabelValues("backpressure").Inc()
			c.logger.Debug("client queue full, event dropped", "type", ev.Type)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
	relayClients.Set(0)
}

// ServeWS upgrades the request and relays events until the client goes
// away. It blocks for the lifetime of the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c, err := h.register(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	c.logger.Info("relay client connected")

	go c.writePump()
	c.readPump()

	h.unregister(c)
	c.logger.Info("relay client disconnected")
}

func (h *Hub) register(conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	id := uuid.New().String()
	c := &client{
		id:     id,
		conn:   conn,
		send:   make(chan WireEvent, sendBuffer),
		moving: rate.NewLimiter(h.limit, h.burst),
		logger: h.logger.With("client_id", id),
	}
	h.clients[id] = c
	relayClients.Inc()
	return c, nil
}

// unregister removes c and closes its queue, which stops its writer.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	relayClients.Dec()
}

// readPump discards client messages and returns when the connection fails.
// Reading is required to process pongs and close frames.
func (c *client) readPump() {
	c.conn.SetReadLimit(maxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("relay read failed", "error", err)
			}
			return
		}
	}
}

// writePump owns all writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("relay write failed", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
