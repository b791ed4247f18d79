package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
)

// Services bundles the application services the handlers call.
type Services struct {
	Credits        *services.CreditService
	Ledger         *services.LedgerService
	Collaborations *services.CollaborationService
	Dashboards     *services.DashboardService
}

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
	// Ready checks backing dependencies for /readyz.
	Ready func(ctx context.Context) error
	// CacheEntries reports the collaborator cache size for /metrics.
	CacheEntries func() int
	Now          func() time.Time
}

type Server struct {
	http.Server
	svc              Services
	logger           *log.Logger
	ready            func(ctx context.Context) error
	cacheEntries     func() int
	now              func() time.Time
	startedAt        time.Time
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		svc:              svc,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		ready:            opts.Ready,
		cacheEntries:     opts.CacheEntries,
		now:              opts.Now,
		startedAt:        opts.Now(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: security.NewDetector(),
		traceMiddleware:  trace.NewMiddleware(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(log.Middleware(logger, trace.FromRequest))
	r.Use(log.AccessLog(s.securityDetector.ExtractClientIP))
	r.Use(s.securityDetector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireUser)
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(s.rateLimiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldUserID, userID(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			TooManyRequestsError().Write(w)
		}))

		r.Post("/terms/resolve", s.handleResolveTerms)

		r.Route("/credits", func(r chi.Router) {
			r.Get("/", s.handleListCredits)
			r.Post("/", s.handleCreateCredit)
			r.Post("/{id}/settle", s.handleSettleCredit)
			r.Delete("/{id}", s.handleDeleteCredit)
		})
		r.Route("/charges", func(r chi.Router) {
			r.Get("/", s.handleListCharges)
			r.Post("/", s.handleCreateCharge)
			r.Put("/{id}", s.handleUpdateCharge)
			r.Delete("/{id}", s.handleDeleteCharge)
		})
		r.Route("/savings", func(r chi.Router) {
			r.Get("/", s.handleListSavings)
			r.Post("/", s.handleCreateSavings)
			r.Put("/{id}", s.handleUpdateSavings)
			r.Delete("/{id}", s.handleDeleteSavings)
		})
		r.Route("/incomes", func(r chi.Router) {
			r.Get("/", s.handleListIncomes)
			r.Post("/", s.handleCreateIncome)
			r.Put("/{id}", s.handleUpdateIncome)
			r.Delete("/{id}", s.handleDeleteIncome)
		})
		r.Route("/collaborations", func(r chi.Router) {
			r.Get("/", s.handleListCollaborations)
			r.Post("/", s.handleInvite)
			r.Post("/{id}/respond", s.handleRespond)
			r.Delete("/{id}", s.handleRemoveCollaboration)
		})

		r.Get("/dashboard", s.handleDashboard)
	})

	return r
}

// rateLimitKey limits per user, falling back to the client IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if uid := userID(r); uid != "" {
		return "user:" + uid
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

func (s *Server) today() core.Date { return core.DateOf(s.now()) }

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
