// Package websocket provides WebSocket-based push delivery for the tickqd
// demo daemon.
//
// Clients open a WebSocket connection to:
//
//	GET /ws
//
// Each connection runs one stream consumer against the queue: items drained
// by the scheduler are split among all connected clients, each item going to
// exactly one of them.
//
// Server → client message frame:
//
//	{"type":"item","key":"<ULID>","id":"...","priority":...,"payload":"..."}
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/snehjoshi/tickq"
)

var upgrader = gorillaws.Upgrader{
	// CheckOrigin rejects cross-origin WebSocket upgrade requests.
	// A request is considered same-origin when its Origin header matches
	// the Host header (scheme-agnostic). Requests without an Origin header
	// (e.g. from native clients/curl) are always allowed.
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser client, allow
		}
		parsed, err := parseHost(origin)
		if err != nil {
			return false
		}
		return parsed == r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// parseHost returns the host:port (or just host) portion of a URL string.
func parseHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q", rawURL)
	}
	return u.Host, nil
}

// Handler serves the WebSocket push endpoint for one queue.
type Handler struct {
	Queue *tickq.Queue
}

// serverFrame is the JSON structure the server sends to the client.
type serverFrame struct {
	Type     string `json:"type"` // "item"
	Key      string `json:"key"`  // handle ULID
	ID       string `json:"id,omitempty"`
	Priority int64  `json:"priority"`
	Payload  any    `json:"payload"`
}

// ServeHTTP upgrades the connection and pumps the queue's stream into it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// The read loop exists only to detect client disconnect; clients send
	// no control frames.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		it, err := h.Queue.Next(ctx)
		if err != nil {
			return // client gone or server shutting down
		}

		frame := serverFrame{
			Type:     "item",
			Key:      it.Handle.Key(),
			ID:       it.Handle.ID(),
			Priority: it.Priority,
			Payload:  it.Payload,
		}
		data, err := json.Marshal(frame)
		if err != nil {
			slog.Warn("ws marshal failed", "key", frame.Key, "err", err)
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if writeErr := conn.WriteMessage(gorillaws.TextMessage, data); writeErr != nil {
			slog.Warn("ws write failed, dropping client", "err", writeErr)
			return
		}
	}
}
