// Package api serves the rule service over HTTP: the flat endpoints used by
// the rule builder frontend and the REST surface under /v1.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/TimurManjosov/rulesmith/internal/audit"
	"github.com/TimurManjosov/rulesmith/internal/service"
	"github.com/TimurManjosov/rulesmith/internal/telemetry"
)

const (
	defaultRequestTimeout = 5 * time.Second
	defaultMaxBodyBytes   = 1 << 20
)

// Options configures the HTTP layer. Zero values fall back to defaults;
// a zero RateLimitPerIP disables rate limiting.
type Options struct {
	Logger         zerolog.Logger
	Metrics        *telemetry.Metrics
	RateLimitPerIP int // requests per minute
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

type Server struct {
	svc            *service.RuleService
	logger         zerolog.Logger
	metrics        *telemetry.Metrics
	rateLimit      int
	corsOrigins    []string
	requestTimeout time.Duration
	maxBodyBytes   int64
}

func NewServer(svc *service.RuleService, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		svc:            svc,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		rateLimit:      opts.RateLimitPerIP,
		corsOrigins:    opts.CORSOrigins,
		requestTimeout: opts.RequestTimeout,
		maxBodyBytes:   opts.MaxBodyBytes,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	r.Use(s.requestLogger()...)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	if s.rateLimit > 0 {
		r.Use(httprate.Limit(s.rateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(RateLimitedError),
		))
	}
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(auditSource)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// frontend endpoints
	r.Post("/create_rule", s.handleCreateRule)
	r.Post("/combine_rules", s.handleCombineRules)
	r.Post("/evaluate_rule", s.handleEvaluateRule)
	r.Post("/check_rule", s.handleCheckRule)

	r.Route("/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handlePostRule)
		r.Post("/combine", s.handlePostCombine)
		r.Post("/parse", s.handlePostParse)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Delete("/", s.handleDeleteRule)
			r.Get("/attributes", s.handleGetAttributes)
			r.Post("/evaluate", s.handlePostEvaluate)
			r.Post("/evaluate/batch", s.handlePostEvaluateBatch)
		})
	})

	return r
}

// requestLogger attaches a request-scoped zerolog logger and writes one
// access log line per request.
func (s *Server) requestLogger() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		hlog.NewHandler(s.logger),
		hlog.MethodHandler("method"),
		hlog.URLHandler("path"),
		hlog.RemoteAddrHandler("ip"),
		requestIDField,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	}
}

// requestIDField adds the chi request ID to the request logger.
func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

// auditSource records who made the request for the audit trail.
func auditSource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := audit.WithSource(r.Context(), audit.Source{
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
