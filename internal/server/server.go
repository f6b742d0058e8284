package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/handlers"
	"github.com/Tih000/max/internal/middleware"
)

// Options carries the dependencies and settings of the admin HTTP API
type Options struct {
	DB          *database.DB
	TaskRepo    database.TaskRepositoryInterface
	ChatRepo    database.ChatRepositoryInterface
	PrefRepo    database.DigestPreferenceRepositoryInterface
	Reminders   handlers.ReminderAcker
	Digests     handlers.DigestScheduling
	RedisClient *redis.Client

	Port       string
	AdminToken string
	Ratelimit  string
	Tracing    bool

	Logger *zap.Logger
}

// Server is the admin HTTP API around the bot's store and schedulers
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the router, middleware chain, and http.Server
func New(opts Options) (*Server, error) {
	r := mux.NewRouter()

	// Middleware order: tracing and headers outermost, logging innermost
	if opts.Tracing {
		r.Use(otelmux.Middleware("max-assistant"))
	}
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(opts.Logger))
	r.Use(middleware.Logging(opts.Logger))

	health := handlers.NewHealthChecker(opts.DB)
	r.HandleFunc("/healthz", health.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.BearerToken(opts.AdminToken, opts.Logger))

	if opts.RedisClient != nil {
		rateLimitMW, err := middleware.RateLimit(opts.RedisClient, opts.Ratelimit)
		if err != nil {
			return nil, fmt.Errorf("failed to build rate limiter: %w", err)
		}
		api.Use(rateLimitMW)
	}

	handlers.NewTaskHandler(opts.TaskRepo, opts.Logger).RegisterRoutes(api)
	handlers.NewReminderHandler(opts.Reminders, opts.Logger).RegisterRoutes(api)
	handlers.NewDigestHandler(opts.PrefRepo, opts.Digests, opts.Logger).RegisterRoutes(api)
	handlers.NewExportHandler(opts.TaskRepo, opts.ChatRepo, opts.Logger).RegisterRoutes(api)

	corsHandler := cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(r)

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + opts.Port,
			Handler:           corsHandler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: opts.Logger,
	}, nil
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	s.logger.Info("admin_server_started", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
