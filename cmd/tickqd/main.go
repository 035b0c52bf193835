// Command tickqd is a small demonstration daemon around a tickq queue.
// It loads configuration, builds a queue bound to the system clock, and
// exposes the queue over HTTP: producers schedule items with POST /items,
// consumers receive drained items over the WebSocket endpoint at /ws.
//
// Usage:
//
//	tickqd [--config path/to/config.yaml]
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/snehjoshi/tickq"
	"github.com/snehjoshi/tickq/internal/config"
	"github.com/snehjoshi/tickq/internal/metrics"
	"github.com/snehjoshi/tickq/internal/transport/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tickqd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// ── 1. Load configuration ────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// ── 2. Set up structured logger ──────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// ── 3. Build the queue ───────────────────────────────────────────────────
	metricsReg := &metrics.Registry{}
	q, err := tickq.New(tickq.Options{
		Name:    cfg.Queue.Name,
		Clock:   tickq.SystemClock(),
		Timers:  tickq.SystemTimers(),
		Metrics: metricsReg,
	})
	if err != nil {
		return fmt.Errorf("init queue: %w", err)
	}
	q.Start()
	defer q.Stop()

	slog.Info("tickqd starting",
		"queue", cfg.Queue.Name,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// ── 4. Wire HTTP surface ─────────────────────────────────────────────────
	api := &apiServer{cfg: cfg, q: q, metrics: metricsReg}

	mux := http.NewServeMux()
	mux.Handle("POST /items", api.rateLimited(http.HandlerFunc(api.handleInsert)))
	mux.HandleFunc("DELETE /items/{ref}", api.handleRemove)
	mux.HandleFunc("GET /stats", api.handleStats)
	mux.Handle("GET /ws", &websocket.Handler{Queue: q})
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metricsReg.Handler())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.logged(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("tickqd ready", "addr", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		} else {
			serveErr <- nil
		}
	}()

	// ── 5. Graceful shutdown on SIGINT / SIGTERM ─────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("tickqd stopped", "pending", q.Size())
	return nil
}

// ─── API server ───────────────────────────────────────────────────────────────

type apiServer struct {
	cfg     *config.Config
	q       *tickq.Queue
	metrics *metrics.Registry

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// insertRequest is the POST /items body. Exactly one of deliver_at (UTC ms)
// or delay_ms must be positive.
type insertRequest struct {
	ID        string          `json:"id,omitempty"`
	DeliverAt int64           `json:"deliver_at,omitempty"`
	DelayMs   int64           `json:"delay_ms,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type insertResponse struct {
	Key       string `json:"key"`
	ID        string `json:"id,omitempty"`
	DeliverAt int64  `json:"deliver_at"`
}

func (a *apiServer) handleInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body: " + err.Error()})
		return
	}
	if limit := a.cfg.Queue.MaxPayloadBytes; limit > 0 && len(req.Payload) > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
		return
	}

	if (req.DeliverAt > 0) == (req.DelayMs > 0) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of deliver_at or delay_ms must be positive"})
		return
	}

	deliverAt := req.DeliverAt
	if deliverAt <= 0 {
		deliverAt = time.Now().UnixMilli() + req.DelayMs
	}
	if ahead := a.cfg.Queue.MaxScheduleAheadMs; ahead > 0 && deliverAt > time.Now().UnixMilli()+ahead {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "deliver_at too far in the future"})
		return
	}

	// The raw JSON string is the payload; string payloads keep the registry's
	// payload index usable from the wire.
	var h *tickq.Handle
	var err error
	if req.ID != "" {
		h, err = a.q.InsertWithID(deliverAt, string(req.Payload), req.ID)
	} else {
		h, err = a.q.Insert(deliverAt, string(req.Payload))
	}
	if err != nil {
		status := http.StatusConflict
		if !errors.Is(err, tickq.ErrDuplicateID) && !errors.Is(err, tickq.ErrDuplicatePayload) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, insertResponse{
		Key:       h.Key(),
		ID:        h.ID(),
		DeliverAt: deliverAt,
	})
}

func (a *apiServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	it := a.q.Remove(ref)
	if it == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such item"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      it.Handle.Key(),
		"id":       it.Handle.ID(),
		"priority": it.Priority,
	})
}

func (a *apiServer) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]any{
		"queue":    a.cfg.Queue.Name,
		"size":     a.q.Size(),
		"buffered": a.q.Buffered(),
		"running":  a.q.Running(),
	}
	if next, ok := a.q.Min(); ok {
		stats["next_deadline"] = next
	}
	writeJSON(w, http.StatusOK, stats)
}

// ─── Middleware ───────────────────────────────────────────────────────────────

// rateLimited applies per-client token-bucket rate limiting to producers.
func (a *apiServer) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter(clientIP(r)).Allow() {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *apiServer) limiter(ip string) *rate.Limiter {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limiters == nil {
		a.limiters = make(map[string]*rate.Limiter)
	}
	if l, ok := a.limiters[ip]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(a.cfg.Producers.MaxRate), a.cfg.Producers.Burst)
	a.limiters[ip] = l
	return l
}

// logged logs method, path, status, and duration for every request, and
// feeds the HTTP request counter.
func (a *apiServer) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		a.metrics.HTTPReqs.Inc(metrics.HTTPKey(r.Method, r.URL.Path, strconv.Itoa(wrapped.status)))
		slog.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the /ws endpoint can
// upgrade the connection from inside the logging middleware.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// clientIP extracts the client IP from RemoteAddr.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
