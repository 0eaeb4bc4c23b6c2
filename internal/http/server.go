package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"saldo/internal/auth"
	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/metrics"
	"saldo/internal/middleware/ratelimit"
	"saldo/internal/middleware/security"
	"saldo/internal/middleware/trace"
	"saldo/internal/services"
	appweb "saldo/web"
)

// LedgerService is what the handlers need from the ledger.
type LedgerService interface {
	Submit(ctx context.Context, scope string, req core.SubmitRequest) (services.SubmitResult, error)
	Query(ctx context.Context, scope string) (services.Ledger, error)
	Total(ctx context.Context, scope string) (decimal.Decimal, error)
	History(ctx context.Context, scope string, days int) (core.History, error)
	Suggest(ctx context.Context, scope, prefix string) ([]string, error)
	Ping(ctx context.Context) error
	Location() *time.Location
	PageDays() int
}

// Options wires a Server. Sessions and Authenticator are both nil when
// authentication is disabled; Metrics may be nil.
type Options struct {
	Addr               string
	Ledger             LedgerService
	Sessions           *auth.SessionManager
	Authenticator      auth.Authenticator
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	ledger    LedgerService
	sessions  *auth.SessionManager
	authn     auth.Authenticator
	metrics   *metrics.Metrics
	logger    *applog.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:   opts.Ledger,
		sessions: opts.Sessions,
		authn:    opts.Authenticator,
		metrics:  opts.Metrics,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP, s.metrics.ObserveHTTP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	protect := auth.RequireSession(s.sessions)
	private := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/total", private(s.handleTotal))
	mux.Handle("/api/getTotal", private(s.handleTotal))
	mux.Handle("/submitEntry", private(s.handleSubmitEntry))
	mux.Handle("/api/submitEntry", private(s.handleSubmitEntry))
	mux.Handle("/entries", private(s.handleEntries))
	mux.Handle("/history", private(s.handleHistory))
	mux.Handle("/suggestions", private(s.handleSuggestions))

	mux.Handle("/ui/history", private(s.handleHistoryPartial))
	mux.Handle("/ui/suggestions", private(s.handleSuggestionsPartial))
	mux.Handle("/{$}", private(s.handleIndex))

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RateLimitHit()
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		writeMessage(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
	}

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, onLimit, http.MethodPost)(handler)
	handler = s.detector.Middleware(logger, func(*http.Request) { s.metrics.SuspiciousRequest() })(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.Recover(logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    64 << 10,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
