package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	applog "saldo/internal/log"
)

func testLogger(buf *bytes.Buffer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = buf
	cfg.Format = "json"
	return applog.New(cfg)
}

func TestMiddleware_RequestIDAndObserve(t *testing.T) {
	var buf bytes.Buffer
	var gotRoute string
	var gotStatus int
	m := NewMiddleware(testLogger(&buf), func(*http.Request) string { return "10.0.0.1" },
		func(method, route string, status int, elapsed time.Duration) {
			gotRoute, gotStatus = route, status
		})

	mux := http.NewServeMux()
	var ctxID string
	mux.HandleFunc("GET /total", func(w http.ResponseWriter, r *http.Request) {
		ctxID = GetRequestID(r.Context())
		applog.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Middleware(mux)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/total", nil))

	id := rr.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(id, "req_") || id != ctxID {
		t.Fatalf("request id header %q, context %q", id, ctxID)
	}
	if gotRoute != "GET /total" || gotStatus != http.StatusTeapot {
		t.Fatalf("observed route=%q status=%d", gotRoute, gotStatus)
	}
	logs := buf.String()
	if !strings.Contains(logs, `"msg":"inside handler"`) || !strings.Contains(logs, id) {
		t.Fatalf("handler log line is missing the request id: %s", logs)
	}
	if !strings.Contains(logs, `"level":"WARN"`) {
		t.Fatalf("4xx completion should log at WARN: %s", logs)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Fatalf("TotalRequests = %d", m.GetMetrics().TotalRequests)
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	var route string
	m := NewMiddleware(testLogger(&buf), nil, func(_, r string, _ int, _ time.Duration) { route = r })
	h := m.Middleware(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get(RequestIDHeader) != "abc-123" {
		t.Fatalf("request id = %q", rr.Header().Get(RequestIDHeader))
	}
	if route != "unmatched" {
		t.Fatalf("route = %q", route)
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	h := Recover(testLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Internal server error") {
		t.Fatalf("body = %s", rr.Body.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("panic value not logged: %s", buf.String())
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b || len(a) != len("req_")+16 {
		t.Fatalf("ids %q %q", a, b)
	}
}
