package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.EntrySubmitted("add")
	m.EntrySubmitted("add")
	m.SubmissionRejection("comment")
	m.StoreError("insert")
	m.EventPublished("amqp", nil)
	m.EventPublished("amqp", errors.New("down"))
	m.RateLimitHit()
	m.SuspiciousRequest()
	m.ObserveHTTP("POST", "/submitEntry", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.EntriesSubmitted.WithLabelValues("add")); got != 2 {
		t.Errorf("entries submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("amqp", "error")); got != 1 {
		t.Errorf("failed publishes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/submitEntry", "200")); got != 1 {
		t.Errorf("http requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.EntrySubmitted("add")
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.EventPublished("kafka", nil)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.StoreError("find_all")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `saldo_store_errors_total{op="find_all"} 1`) {
		t.Errorf("metrics output missing store error counter:\n%s", body)
	}
}
