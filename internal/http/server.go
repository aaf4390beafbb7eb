package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/auth"
	applog "expensetracker/internal/log"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
	"expensetracker/internal/services"
)

// UserStore registers and authenticates API users.
type UserStore interface {
	Register(ctx context.Context, username, password, email string) error
	Authenticate(ctx context.Context, username, password string) (auth.User, error)
}

type Server struct {
	http.Server
	svc      *services.ExpenseService
	users    UserStore
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger    *applog.Logger
	rateLimit ratelimit.Config
}

// WithLogger sets the base request logger.
func WithLogger(l *applog.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithRateLimit sets the per-client limit applied to write requests.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(o *serverOptions) { o.rateLimit = cfg }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.ExpenseService, users UserStore, opts ...Option) *Server {
	o := serverOptions{rateLimit: ratelimit.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentHTTP})
	}

	s := &Server{
		svc:      svc,
		users:    users,
		logger:   o.logger,
		limiter:  ratelimit.NewLimiter(o.rateLimit),
		detector: security.NewDetector(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.limited(s.handleCreateExpense))
	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/receipts", s.limited(s.handleImportReceipt))

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/months/{year}/{month}", s.handleMonthOverview)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("PUT /api/categories/{name}", s.limited(s.handleRenameCategory))
	mux.HandleFunc("DELETE /api/categories/{name}", s.limited(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/budgets/suggestions", s.handleBudgetSuggestions)
	mux.HandleFunc("POST /api/budgets/usage", s.limited(s.handleBudgetUsage))

	mux.HandleFunc("POST /api/auth/register", s.limited(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.limited(s.handleLogin))

	mux.HandleFunc("POST /api/backup", s.limited(s.handleBackup))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(s.logger, nil)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// limited applies the per-client rate limit to a write handler.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return s.limiter.Middleware(s.detector.ExtractClientIP, TooManyRequests)(next).ServeHTTP
}

// Shutdown gracefully shuts down the server and its background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready once the store can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.svc.Categories(ctx); err != nil {
		applog.LogError(ctx, "Readiness check failed", err, "ready", nil)
		ErrorResponse(http.StatusServiceUnavailable, "store unavailable").Write(w)
		return
	}
	OK(map[string]string{"status": "ready"}).Write(w)
}
