package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snehjoshi/tickq/internal/metrics"
)

func TestCounters_IncAndAdd(t *testing.T) {
	reg := &metrics.Registry{}

	reg.Inserts.Inc("q1")
	reg.Inserts.Inc("q1")
	reg.Inserts.Inc("q2")
	reg.Cleared.Add("q1", 5)

	if got := reg.Inserts.Value("q1"); got != 2 {
		t.Errorf("Inserts[q1]: want 2, got %d", got)
	}
	if got := reg.Inserts.Value("q2"); got != 1 {
		t.Errorf("Inserts[q2]: want 1, got %d", got)
	}
	if got := reg.Cleared.Value("q1"); got != 5 {
		t.Errorf("Cleared[q1]: want 5, got %d", got)
	}
	if got := reg.Polls.Value("q1"); got != 0 {
		t.Errorf("untouched counter: want 0, got %d", got)
	}
}

func TestHandler_RendersPrometheusText(t *testing.T) {
	reg := &metrics.Registry{}
	reg.Inserts.Inc("jobs")
	reg.Polls.Add("jobs", 3)
	reg.HTTPReqs.Inc(metrics.HTTPKey("POST", "/items", "201"))

	body := scrape(t, reg)

	for _, want := range []string{
		"# HELP tickq_items_inserted_total",
		"# TYPE tickq_items_inserted_total counter",
		`tickq_items_inserted_total{queue="jobs"} 1`,
		`tickq_items_polled_total{queue="jobs"} 3`,
		`tickq_http_requests_total{method="POST",path="/items",status="201"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition output missing %q\n%s", want, body)
		}
	}
}

func TestHandler_SkipsEmptyFamilies(t *testing.T) {
	reg := &metrics.Registry{}
	reg.Inserts.Inc("q")

	body := scrape(t, reg)
	if strings.Contains(body, "tickq_items_removed_total") {
		t.Errorf("empty family rendered:\n%s", body)
	}
}

// scrape performs a GET against the registry handler and returns the body.
func scrape(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type: want text/plain, got %s", ct)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}
