// Package metrics provides a lightweight Prometheus-compatible metrics
// registry for tickq. It deliberately avoids the prometheus/client_golang
// package so library consumers carry no additional dependencies.
//
// # Counter naming convention
//
// Queue-operation counters are keyed by the queue's configured name.
// HTTP counters (used by the demo daemon) use a tab-separated
// "method\tpath\tstatus" key so a single sync.Map can hold all label
// combinations without map nesting.
//
// # Prometheus text output
//
// Registry.Handler() returns an http.Handler that renders all counters in
// the Prometheus exposition format (text/plain; version=0.0.4).
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
)

// ─── labelCounter ─────────────────────────────────────────────────────────────

// labelCounter is a lock-free, label-keyed counter map backed by sync.Map
// and atomic.Int64 values.
type labelCounter struct {
	vals sync.Map // key string → *atomic.Int64
}

func (lc *labelCounter) get(key string) *atomic.Int64 {
	v, _ := lc.vals.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the counter for key by 1.
func (lc *labelCounter) Inc(key string) { lc.get(key).Add(1) }

// Add increments the counter for key by n.
func (lc *labelCounter) Add(key string, n int64) { lc.get(key).Add(n) }

// Value returns the current count for key.
func (lc *labelCounter) Value(key string) int64 { return lc.get(key).Load() }

// Each calls fn for every key/value pair. The order is non-deterministic.
func (lc *labelCounter) Each(fn func(key string, val int64)) {
	lc.vals.Range(func(k, v any) bool {
		fn(k.(string), v.(*atomic.Int64).Load())
		return true
	})
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds all tickq application metrics.
type Registry struct {
	// Queue-operation counters.  key = queue name
	Inserts labelCounter
	Polls   labelCounter
	Removes labelCounter
	Updates labelCounter
	Cleared labelCounter

	// HTTP counters for the demo daemon.  key = "method\tpath\tstatus"
	HTTPReqs labelCounter
}

// ─── Prometheus text serialisation ────────────────────────────────────────────

// Handler returns an http.Handler that renders all metrics in the
// Prometheus plain-text exposition format (text/plain; version=0.0.4).
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		var b strings.Builder

		queueFamily := func(name, help string, lc *labelCounter) {
			writeFamily(&b, name, help, "counter",
				func(fn func(labels, val string)) {
					lc.Each(func(key string, val int64) {
						fn(fmt.Sprintf(`queue=%q`, key), fmt.Sprintf("%d", val))
					})
				})
		}

		queueFamily("tickq_items_inserted_total",
			"Total items inserted", &r.Inserts)
		queueFamily("tickq_items_polled_total",
			"Total items polled (scheduled dispatch included)", &r.Polls)
		queueFamily("tickq_items_removed_total",
			"Total items removed by callers", &r.Removes)
		queueFamily("tickq_priority_updates_total",
			"Total successful priority updates", &r.Updates)
		queueFamily("tickq_items_cleared_total",
			"Total items dropped by Clear", &r.Cleared)

		writeFamily(&b, "tickq_http_requests_total",
			"Total HTTP requests by method, path, and status code", "counter",
			func(fn func(labels, val string)) {
				r.HTTPReqs.Each(func(key string, val int64) {
					method, path, status := splitThree(key)
					fn(fmt.Sprintf(`method=%q,path=%q,status=%q`, method, path, status),
						fmt.Sprintf("%d", val))
				})
			})

		fmt.Fprint(w, b.String())
	})
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// writeFamily writes a single Prometheus metric family to b.
// fill is called with a writer function that appends individual label+value
// lines; the family header is skipped when there are no lines.
func writeFamily(
	b *strings.Builder,
	name, help, typ string,
	fill func(fn func(labels, val string)),
) {
	var lines []string
	fill(func(labels, val string) {
		lines = append(lines, fmt.Sprintf("%s{%s} %s\n", name, labels, val))
	})
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
	for _, l := range lines {
		b.WriteString(l)
	}
}

// splitTwo splits a tab-delimited key of the form "a\tb" into (a, b).
// If there is no tab, the whole string is returned as the first component.
func splitTwo(key string) (string, string) {
	i := strings.IndexByte(key, '\t')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// splitThree splits a tab-delimited key "a\tb\tc" into (a, b, c).
func splitThree(key string) (string, string, string) {
	a, rest := splitTwo(key)
	b, c := splitTwo(rest)
	return a, b, c
}

// HTTPKey builds the label key used by HTTPReqs.
func HTTPKey(method, path, status string) string {
	return method + "\t" + path + "\t" + status
}
