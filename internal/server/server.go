package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/natours/api/config"
	"github.com/natours/api/internal/auth"
	"github.com/natours/api/internal/db"
	"github.com/natours/api/internal/handlers"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/mailer"
	"github.com/natours/api/internal/metrics"
	"github.com/natours/api/internal/mq"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/internal/storage"
	"github.com/natours/api/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New connects to every configured backend and builds the router.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	srv := &Server{db: dbConn, broker: broker}
	deps, err := buildDeps(ctx, cfg, dbConn, broker)
	if err != nil {
		_ = srv.close()
		return nil, err
	}

	srv.router = NewRouter(cfg, deps)
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

func buildDeps(ctx context.Context, cfg config.Config, dbConn *sql.DB, broker *mq.MQ) (handlers.Deps, error) {
	userRepo := store.NewUserRepository(dbConn)

	access, err := auth.New(auth.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL: cfg.Auth.TokenTTL,
	}, userRepo, auth.BcryptHasher{})
	if err != nil {
		return handlers.Deps{}, err
	}

	// A nil *Storage must not become a non-nil PhotoStore.
	var photos services.PhotoStore
	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return handlers.Deps{}, fmt.Errorf("open object storage: %w", err)
	}
	if objects != nil {
		photos = objects
		logging.Info().Str("backend", cfg.Storage.Backend).Str("bucket", objects.Bucket()).Msg("photo uploads enabled")
	}

	sender, err := newMailSender(cfg, broker)
	if err != nil {
		return handlers.Deps{}, err
	}

	return handlers.Deps{
		Responder: handlers.Responder{ExposeStack: !cfg.IsProduction()},
		Access:    access,
		Tours:     services.NewTourService(store.NewTourRepository(dbConn)),
		Users:     services.NewUserService(userRepo, access, photos),
		Reviews:   services.NewReviewService(store.NewReviewRepository(dbConn)),
		Accounts:  services.NewAccountService(userRepo, access, sender),
		PublicURL: cfg.PublicURL,
	}, nil
}

// newMailSender queues mail when a broker is configured, sends it inline
// over SMTP when a host is set and only logs it otherwise.
func newMailSender(cfg config.Config, broker *mq.MQ) (mailer.Sender, error) {
	switch {
	case broker != nil:
		return mailer.NewQueueSender(broker, cfg.MQ.MailQueue), nil
	case cfg.SMTP.Host != "":
		return mailer.NewSMTPSender(cfg.SMTP)
	default:
		logging.Warn().Msg("no mail queue or SMTP host configured, emails will only be logged")
		return mailer.LogSender{}, nil
	}
}

// NewRouter builds the middleware stack and mounts the API under /api/v1.
func NewRouter(cfg config.Config, deps handlers.Deps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.RequestLogger,
		metrics.Middleware,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		cors.Handler(cors.Options{
			AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}),
	)

	router.Get("/healthz", handlers.Healthz)
	router.Handle("/metrics", metrics.Handler())
	router.Route("/api", func(r chi.Router) {
		if cfg.HTTP.RateLimitRequests > 0 {
			r.Use(httprate.Limit(
				cfg.HTTP.RateLimitRequests,
				cfg.HTTP.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(handlers.TooManyRequests),
			))
		}
		r.Route("/v1", func(r chi.Router) {
			handlers.APIRouter(r, deps)
		})
	})
	router.NotFound(deps.Responder.NotFound)
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	logging.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires and releases backend connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.close())
}

func (s *Server) close() error {
	var errs []error
	if s.broker != nil {
		errs = append(errs, s.broker.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
