// Copyright (C) 2025, Velodata Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package progress

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/velodata/funnelgen/pkg/log"
)

// Update is one progress message pushed to subscribers. The GUI that
// drives the generator renders these live.
type Update struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Records   int       `json:"records"`
	PerSecond float64   `json:"per_second"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans progress updates out to websocket subscribers. Slow or dead
// subscribers are dropped rather than allowed to stall the pipeline.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan Update
	log     log.Logger

	upgrader websocket.Upgrader
}

// NewHub creates a progress hub.
func NewHub(logger log.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]chan Update),
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish broadcasts an update. Never blocks: full client buffers drop
// the update for that client.
func (h *Hub) Publish(u Update) {
	u.Timestamp = time.Now()
	if u.Total > 0 {
		u.Percent = u.Completed * 100 / u.Total
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribers is the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and streams updates until
// the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ch := make(chan Update, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	h.log.Debug("progress subscriber connected", zap.String("remote", conn.RemoteAddr().String()))

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Reader goroutine: we never expect messages, but reading surfaces
	// close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case u := <-ch:
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		}
	}
}
