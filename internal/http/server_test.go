package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"saldo/internal/auth"
	applog "saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/services"
	"saldo/internal/store/memory"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv   *Server
	store *memory.Store
}

type envOption func(*Options)

func withAuth(t *testing.T) envOption {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return func(o *Options) {
		o.Sessions = auth.NewSessionManager(testSecret, time.Hour, false)
		o.Authenticator = auth.NewCredentialsAuthenticator("pakiya", string(hash), "Pakiya")
	}
}

func withRateLimit(n int) envOption {
	return func(o *Options) { o.RateLimitPerMinute = n }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	st := memory.New()
	m := metrics.New()
	cfg := applog.DefaultConfig()
	cfg.Output = io.Discard
	svc := services.NewLedgerService(st, services.Options{
		InitialTotal:          decimal.Zero,
		Location:              time.UTC,
		AllowMissingOperation: true,
		HistoryPageDays:       7,
		Metrics:               m,
	})
	o := Options{
		Addr:    ":0",
		Ledger:  svc,
		Metrics: m,
		Logger:  applog.New(cfg),
	}
	for _, opt := range opts {
		opt(&o)
	}
	srv := NewServer(o)
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testEnv{srv: srv, store: st}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) postJSON(t *testing.T, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, http.MethodPost, target, strings.NewReader(body), map[string]string{"Content-Type": "application/json"})
}

func (e *testEnv) postForm(t *testing.T, target string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	h := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for k, v := range header {
		h[k] = v
	}
	return e.do(t, http.MethodPost, target, strings.NewReader(form.Encode()), h)
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader(rr.Body.Bytes()))
	dec.UseNumber()
	var out map[string]interface{}
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func wantTotal(t *testing.T, body map[string]interface{}, want string) {
	t.Helper()
	got, ok := body["total"].(json.Number)
	if !ok {
		t.Fatalf("total is %T (%v), want a JSON number", body["total"], body["total"])
	}
	if !decimal.RequireFromString(got.String()).Equal(decimal.RequireFromString(want)) {
		t.Fatalf("total = %s, want %s", got, want)
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ok" {
		t.Fatalf("healthz = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}

	_ = env.store.Close()
	rr = env.do(t, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "not_ready") {
		t.Fatalf("readyz with closed store = %d %s", rr.Code, rr.Body.String())
	}
}

func TestSubmitAndQueryScenario(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/total", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /total = %d", rr.Code)
	}
	wantTotal(t, decode(t, rr), "0")

	rr = env.postJSON(t, "/submitEntry", `{"number": 30, "operation": "add", "comment": "salary"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit add = %d %s", rr.Code, rr.Body.String())
	}
	body := decode(t, rr)
	wantTotal(t, body, "30")
	if body["message"] != "Entry saved successfully" {
		t.Fatalf("message = %v", body["message"])
	}

	rr = env.postForm(t, "/api/submitEntry", url.Values{"number": {"10"}, "operation": {"subtract"}, "comment": {"coffee"}}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("submit subtract = %d %s", rr.Code, rr.Body.String())
	}
	wantTotal(t, decode(t, rr), "20")

	rr = env.do(t, http.MethodGet, "/api/getTotal", nil, nil)
	wantTotal(t, decode(t, rr), "20")

	rr = env.do(t, http.MethodGet, "/entries", nil, nil)
	body = decode(t, rr)
	wantTotal(t, body, "20")
	entries, ok := body["entries"].([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("entries = %v", body["entries"])
	}
	first := entries[0].(map[string]interface{})
	if first["comment"] != "coffee" || first["number"] != json.Number("10") || first["operation"] != "subtract" {
		t.Fatalf("most recent entry = %v", first)
	}

	// Reads are idempotent.
	again := env.do(t, http.MethodGet, "/entries", nil, nil)
	if again.Body.String() != rr.Body.String() {
		t.Fatalf("second read differs:\n%s\n%s", rr.Body.String(), again.Body.String())
	}
}

func TestSubmitEntry_ExactDecimalText(t *testing.T) {
	env := newTestEnv(t)
	rr := env.postJSON(t, "/submitEntry", `{"number": 0.1, "operation": "add", "comment": "a"}`)
	wantTotal(t, decode(t, rr), "0.1")
	rr = env.postJSON(t, "/submitEntry", `{"number": "0.2", "operation": "add", "comment": "b"}`)
	if !strings.Contains(rr.Body.String(), `"total":0.3`) {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestSubmitEntry_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantText   string
	}{
		{"empty comment", http.MethodPost, `{"number": 5, "operation": "add", "comment": "  "}`, http.StatusUnprocessableEntity, "comment"},
		{"non numeric", http.MethodPost, `{"number": "abc", "operation": "add", "comment": "x"}`, http.StatusUnprocessableEntity, "number"},
		{"unknown operation", http.MethodPost, `{"number": 1, "operation": "divide", "comment": "x"}`, http.StatusUnprocessableEntity, "operation"},
		{"malformed json", http.MethodPost, `{"number": `, http.StatusBadRequest, "Invalid request body"},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, "/submitEntry", strings.NewReader(tt.body), map[string]string{"Content-Type": "application/json"})
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			msg, _ := decode(t, rr)["message"].(string)
			if !strings.Contains(msg, tt.wantText) {
				t.Fatalf("message = %q, want it to mention %q", msg, tt.wantText)
			}
			if tt.wantStatus == http.StatusMethodNotAllowed && rr.Header().Get("Allow") != "POST" {
				t.Fatalf("Allow = %q", rr.Header().Get("Allow"))
			}
		})
	}

	rr := env.do(t, http.MethodGet, "/entries", nil, nil)
	body := decode(t, rr)
	wantTotal(t, body, "0")
	if entries := body["entries"].([]interface{}); len(entries) != 0 {
		t.Fatalf("rejected submissions were stored: %v", entries)
	}
}

func TestReadEndpoints_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/total", "/entries", "/history", "/suggestions"} {
		rr := env.do(t, http.MethodPost, path, nil, nil)
		if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != "GET, HEAD" {
			t.Fatalf("POST %s = %d Allow=%q", path, rr.Code, rr.Header().Get("Allow"))
		}
	}
}

func TestPersistenceFailure(t *testing.T) {
	env := newTestEnv(t)
	_ = env.store.Close()

	rr := env.postJSON(t, "/submitEntry", `{"number": 1, "operation": "add", "comment": "x"}`)
	if rr.Code != http.StatusInternalServerError || decode(t, rr)["message"] != "Error saving entry" {
		t.Fatalf("submit = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/total", nil, nil)
	if rr.Code != http.StatusInternalServerError || decode(t, rr)["message"] == "" {
		t.Fatalf("total = %d %s", rr.Code, rr.Body.String())
	}
}

func TestHistoryAndSuggestions(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range []string{"Coffee", "coffee beans", "Rent"} {
		if rr := env.postJSON(t, "/submitEntry", `{"number": 2, "operation": "subtract", "comment": "`+c+`"}`); rr.Code != http.StatusOK {
			t.Fatalf("submit %s = %d", c, rr.Code)
		}
	}

	rr := env.do(t, http.MethodGet, "/history?days=1", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("history = %d", rr.Code)
	}
	body := decode(t, rr)
	wantTotal(t, body, "-6")
	days := body["days"].([]interface{})
	if len(days) != 1 || body["totalDays"] != json.Number("1") || body["hasMore"] != false {
		t.Fatalf("history = %v", body)
	}
	day := days[0].(map[string]interface{})
	if day["total"] != json.Number("-6") || len(day["entries"].([]interface{})) != 3 {
		t.Fatalf("day = %v", day)
	}

	rr = env.do(t, http.MethodGet, "/suggestions?q=co", nil, nil)
	got := decode(t, rr)["suggestions"].([]interface{})
	if len(got) != 2 || got[0] != "coffee beans" && got[0] != "Coffee" {
		t.Fatalf("suggestions = %v", got)
	}

	rr = env.do(t, http.MethodGet, "/suggestions", nil, nil)
	if got := decode(t, rr)["suggestions"].([]interface{}); len(got) != 0 {
		t.Fatalf("blank prefix suggestions = %v", got)
	}
}

func TestHTMXFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/", nil, map[string]string{"Accept": "text/html"})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `hx-post="/submitEntry"`) {
		t.Fatalf("index = %d %s", rr.Code, rr.Body.String())
	}

	rr = env.postForm(t, "/submitEntry", url.Values{"number": {"12,5"}, "operation": {"add"}, "comment": {"Gift"}}, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusOK {
		t.Fatalf("htmx submit = %d %s", rr.Code, rr.Body.String())
	}
	var triggers map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rr.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger = %q: %v", rr.Header().Get("HX-Trigger"), err)
	}
	for _, name := range []string{"entry:recorded", "form:reset", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Fatalf("missing %s trigger in %v", name, triggers)
		}
	}

	rr = env.do(t, http.MethodGet, "/ui/history", nil, map[string]string{"HX-Request": "true"})
	html := rr.Body.String()
	if rr.Code != http.StatusOK || !strings.Contains(html, "Credit") || !strings.Contains(html, "12.50") || !strings.Contains(html, "Gift") {
		t.Fatalf("history partial = %d %s", rr.Code, html)
	}

	rr = env.do(t, http.MethodGet, "/ui/suggestions?comment=gi", nil, map[string]string{"HX-Request": "true"})
	if !strings.Contains(rr.Body.String(), `<option value="Gift">`) {
		t.Fatalf("suggestions partial = %s", rr.Body.String())
	}

	rr = env.postForm(t, "/submitEntry", url.Values{"number": {"x"}, "comment": {"Gift"}}, map[string]string{"HX-Request": "true"})
	if rr.Code != http.StatusUnprocessableEntity || !strings.Contains(rr.Header().Get("HX-Trigger"), "show-notification") {
		t.Fatalf("htmx rejection = %d trigger=%q", rr.Code, rr.Header().Get("HX-Trigger"))
	}
}

func TestStaticAndHeaders(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/static/app.js", nil, nil)
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("static = %d cache=%q", rr.Code, rr.Header().Get("Cache-Control"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing headers: %v", rr.Header())
	}
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t, withAuth(t))

	rr := env.do(t, http.MethodGet, "/total", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /total = %d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/", nil, map[string]string{"Accept": "text/html"})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("anonymous index = %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(t, http.MethodGet, "/login", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `name="password"`) {
		t.Fatalf("login page = %d", rr.Code)
	}

	rr = env.postJSON(t, "/login", `{"username": "pakiya", "password": "wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rr.Code)
	}

	rr = env.postForm(t, "/login", url.Values{"username": {"pakiya"}, "password": {"wrong"}}, nil)
	if rr.Code != http.StatusUnauthorized || !strings.Contains(rr.Body.String(), "Invalid username or password") {
		t.Fatalf("bad form login = %d", rr.Code)
	}

	rr = env.postJSON(t, "/login", `{"username": "pakiya", "password": "correct horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login = %d %s", rr.Code, rr.Body.String())
	}
	token, _ := decode(t, rr)["token"].(string)
	bearer := map[string]string{"Authorization": "Bearer " + token, "Content-Type": "application/json"}

	rr = env.do(t, http.MethodPost, "/submitEntry", strings.NewReader(`{"number": 4, "operation": "add", "comment": "mine"}`), bearer)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated submit = %d %s", rr.Code, rr.Body.String())
	}

	// Entries land in the account's scope.
	if got, _ := env.store.FindAll(context.Background(), "pakiya"); len(got) != 1 {
		t.Fatalf("scope pakiya has %d entries", len(got))
	}
	if got, _ := env.store.FindAll(context.Background(), "default"); len(got) != 0 {
		t.Fatalf("default scope has %d entries", len(got))
	}

	rr = env.postForm(t, "/login", url.Values{"username": {"pakiya"}, "password": {"correct horse"}}, nil)
	if rr.Code != http.StatusSeeOther || len(rr.Result().Cookies()) != 1 {
		t.Fatalf("form login = %d cookies=%v", rr.Code, rr.Result().Cookies())
	}
	cookie := rr.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/total", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	env.srv.Handler.ServeHTTP(rr, req)
	wantTotal(t, decode(t, rr), "4")

	rr = env.do(t, http.MethodPost, "/logout", nil, nil)
	if rr.Code != http.StatusSeeOther || rr.Result().Cookies()[0].MaxAge >= 0 {
		t.Fatalf("logout = %d", rr.Code)
	}
}

func TestLoginWithoutAuthRedirects(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/login", nil, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("login with auth disabled = %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestRateLimitOnPOST(t *testing.T) {
	env := newTestEnv(t, withRateLimit(1))

	if rr := env.postJSON(t, "/submitEntry", `{"number": 1, "operation": "add", "comment": "x"}`); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := env.postJSON(t, "/submitEntry", `{"number": 1, "operation": "add", "comment": "x"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second = %d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/total", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("GET after limit = %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/total", nil, nil)
	env.postJSON(t, "/submitEntry", `{"number": 1, "operation": "add", "comment": "x"}`)

	rr := env.do(t, http.MethodGet, "/metrics", nil, nil)
	text := rr.Body.String()
	for _, want := range []string{
		`saldo_http_requests_total{method="GET",route="/total",status="200"} 1`,
		`saldo_entries_submitted_total{operation="add"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
