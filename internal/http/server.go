package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/tracker"
	appweb "expensetracker/web"
)

// Options configures a Server.
type Options struct {
	Logger *log.Logger

	// Ready is probed by /readyz. Nil means always ready.
	Ready func(ctx context.Context) error

	RateLimit      ratelimit.Config
	TrustedProxies []string
}

// appMetrics counts flow outcomes for /metrics.
type appMetrics struct {
	uptime       time.Time
	mutations    int64
	failedFlows  int64
	domainErrors int64
}

type Server struct {
	http.Server
	templates *template.Template
	tracker   *tracker.Tracker
	logger    *log.Logger
	ready     func(ctx context.Context) error

	rateLimiter     *ratelimit.Limiter
	traceMiddleware *trace.Middleware
	appMetrics      *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(addr string, trk *tracker.Tracker, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	ips := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		templates:       t,
		tracker:         trk,
		logger:          logger.WithComponent(log.ComponentHTTP),
		ready:           opts.Ready,
		rateLimiter:     ratelimit.NewLimiter(opts.RateLimit),
		traceMiddleware: trace.NewMiddleware(logger, ips.ClientIP),
		appMetrics:      &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /balance/top-up", s.handleTopUp)
	mux.HandleFunc("POST /expenses", s.handleAddExpense)
	mux.HandleFunc("POST /categories/select", s.handleSelectCategory)
	mux.HandleFunc("POST /expenses/{id}/reset", s.handleResetSingle)
	mux.HandleFunc("POST /reset", s.handleResetAll)

	// UI partials
	mux.HandleFunc("GET /ui/balance", s.handleBalancePartial)
	mux.HandleFunc("GET /ui/ledger", s.handleLedgerPartial)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.PageHeadersConfig())
	limited := s.rateLimiter.Middleware(ips.ClientIP, s.onRateLimited, http.MethodPost)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(headers.Middleware(limited(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequests().Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) countMutation() {
	atomic.AddInt64(&s.appMetrics.mutations, 1)
}
