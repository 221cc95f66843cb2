// Package api exposes the HTTP surface: scan job endpoints, webhook mapping
// management, the public webhook relay, and health probes.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmeadows/scanhub/internal/app/relay"
	appscanning "github.com/tmeadows/scanhub/internal/app/scanning"
	"github.com/tmeadows/scanhub/internal/config"
	"github.com/tmeadows/scanhub/pkg/common"
	"github.com/tmeadows/scanhub/pkg/common/logger"
	"github.com/tmeadows/scanhub/pkg/common/otel"
)

// Server hosts the HTTP API over the application services.
type Server struct {
	cfg    *config.Config
	log    *logger.Logger
	tracer trace.Tracer
	router *chi.Mux

	jobs    *appscanning.ScanJobService
	relay   *relay.Service
	db      *pgxpool.Pool
	limiter *common.RateLimiter
}

// NewServer wires the router, middleware stack, and routes.
func NewServer(
	cfg *config.Config,
	log *logger.Logger,
	tracer trace.Tracer,
	jobs *appscanning.ScanJobService,
	relaySvc *relay.Service,
	db *pgxpool.Pool,
) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otel.Middleware(tracer))
	r.Use(loggerMiddleware(log))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:     cfg,
		log:     log,
		tracer:  tracer,
		router:  r,
		jobs:    jobs,
		relay:   relaySvc,
		db:      db,
		limiter: common.NewRateLimiter(cfg.Webhook.RateRPS, cfg.Webhook.RateBurst),
	}

	s.routes()
	return s
}

func loggerMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				ctx := r.Context()
				log.Info(ctx, "Request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration", time.Since(start),
					"trace_id", otel.GetTraceID(ctx),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/readiness", s.handleReadiness)

		r.Post("/scans", s.handleCreateScan)
		r.Get("/scans", s.handleListScans)
		r.Get("/scans/{jobID}", s.handleGetScan)
		r.Post("/scans/{jobID}/cancel", s.handleCancelScan)

		r.Post("/webhooks/mappings", s.handleCreateMapping)
		r.Delete("/webhooks/mappings/{hookID}", s.handleDeleteMapping)
	})

	// Public relay surface: GitHub calls this directly. Authentication is the
	// payload signature, not a user identity.
	s.router.Post("/webhooks/github", s.handleGithubWebhook)
	s.router.Get("/webhooks/github", s.handleWebhookHealth)
}

// Handler exposes the assembled router, used by httptest in integration tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then drains within the configured
// shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Error(shutdownCtx, "failed to shutdown server", "error", err)
		}
	}()

	s.log.Info(ctx, "starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
