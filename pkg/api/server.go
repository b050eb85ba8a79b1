package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/folio/pkg/assistant"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blog"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/identity"
	"github.com/platinummonkey/folio/pkg/journals"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/tenants"
	"github.com/platinummonkey/folio/pkg/workflow"
)

// Services are the domain services exposed over HTTP. Nil services are
// skipped, except Identity, Tenants and Tokens which authentication needs.
type Services struct {
	Tokens    *auth.TokenStore
	Identity  *identity.Service
	Tenants   *tenants.Service
	Journals  *journals.Service
	Workflow  *workflow.Service
	Blog      *blog.Service
	Assistant *assistant.Service
}

// Options configures the ambient middleware around the routes.
type Options struct {
	DB     *sql.DB
	Logger logrus.FieldLogger
	Clock  clockwork.Clock

	// Audit receives access-denied and mutation events. Nil disables auditing.
	Audit audit.Logger
	// AuditSearch backs the admin audit endpoints when set.
	AuditSearch audit.Searcher

	// Metrics and Registry enable /metrics and HTTP instrumentation.
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker

	// RateLimit wraps every API route; anonymous callers such as login
	// attempts are keyed by client IP. Nil selects the in-memory limiter at
	// RateLimitRPM.
	RateLimit    func(http.Handler) http.Handler
	RateLimitRPM int

	MaxBodyBytes int64
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// PublicRouteRegistrar registers routes that accept anonymous callers.
type PublicRouteRegistrar interface {
	RegisterPublicRoutes(router *mux.Router)
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	public  *mux.Router
	private *mux.Router
	handler http.Handler
}

// NewServer assembles the router. Public routes run behind optional
// authentication; everything else requires a bearer token and passes
// through the audit, tenant and rate-limit middleware in that order. Public
// routes share the same limiter.
func NewServer(svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNoOpLogger()
	}
	if opts.RateLimit == nil {
		opts.RateLimit = middleware.NewRateLimitMiddleware(opts.RateLimitRPM, opts.Clock).Handler
	}

	s := &Server{router: mux.NewRouter()}
	s.router.Use(middleware.RequestID, httputil.RecoveryMiddleware(opts.Logger))
	if opts.MaxBodyBytes > 0 {
		s.router.Use(httputil.MaxBytesMiddleware(opts.MaxBodyBytes))
	}
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}

	if opts.Health != nil {
		observability.RegisterHealthRoutes(s.router, opts.Health)
	}
	if opts.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(opts.Registry)).Methods("GET")
	}

	auditMW := audit.NewMiddleware(opts.Audit)

	s.public = s.router.NewRoute().Subrouter()
	s.public.Use(
		middleware.NewAuthMiddleware(svc.Tokens, svc.Identity, true).Handler,
		auditMW.Handler,
		opts.RateLimit,
	)

	s.private = s.router.NewRoute().Subrouter()
	s.private.Use(
		middleware.NewAuthMiddleware(svc.Tokens, svc.Identity, false).Handler,
		auditMW.Handler,
		middleware.TenantMiddleware(svc.Tenants),
		opts.RateLimit,
	)

	idHandlers := identity.NewHandlers(svc.Identity, svc.Tokens)
	s.RegisterPublicRoutes(idHandlers)
	s.RegisterRoutes(idHandlers)
	if opts.DB != nil {
		s.RegisterRoutes(rbac.NewHandlers(opts.DB))
	}
	if opts.AuditSearch != nil {
		s.RegisterRoutes(audit.NewHandlers(opts.AuditSearch))
	}
	if svc.Journals != nil {
		s.RegisterRoutes(journals.NewHandlers(svc.Journals))
	}
	if svc.Workflow != nil {
		s.RegisterRoutes(workflow.NewHandlers(svc.Workflow))
	}
	if svc.Blog != nil {
		h := blog.NewHandlers(svc.Blog)
		s.RegisterPublicRoutes(h)
		s.RegisterRoutes(h)
	}
	if svc.Assistant != nil {
		s.RegisterRoutes(assistant.NewHandlers(svc.Assistant))
	}

	s.handler = otelhttp.NewHandler(s.router, "folio")
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the root router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// RegisterRoutes registers routes from a RouteRegistrar behind authentication.
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.private)
}

// RegisterPublicRoutes registers routes that allow anonymous callers.
func (s *Server) RegisterPublicRoutes(registrar PublicRouteRegistrar) {
	registrar.RegisterPublicRoutes(s.public)
}
