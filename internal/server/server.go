package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskapp/accounts/config"
	"github.com/taskapp/accounts/internal/db"
	"github.com/taskapp/accounts/internal/dbx"
	"github.com/taskapp/accounts/internal/handlers"
	"github.com/taskapp/accounts/internal/mq"
	"github.com/taskapp/accounts/internal/services"
	"github.com/taskapp/accounts/internal/storage"
	"github.com/taskapp/accounts/internal/store"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
}

// New constructs a Server with its store, middleware, and routes wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	avatarStore, err := newAvatarStore(ctx, cfg, dbConn)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	events, err := newEventBus(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)

	runTx := func(ctx context.Context, fn func(ctx context.Context, stores services.AccountStores) error) error {
		return dbx.WithTx(ctx, dbConn, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(ctx, services.AccountStores{
				Users:    store.NewUserRepository(tx),
				Sessions: store.NewSessionRepository(tx),
				Tasks:    store.NewTaskRepository(tx),
			})
		})
	}

	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}

	accounts := services.NewAccountService(
		userRepo,
		sessionRepo,
		avatarStore,
		runTx,
		publisher,
		jwtSecret,
		cfg.Auth.TokenTTL,
		slog.Default(),
	)

	authMiddleware := handlers.RequireAuth(accounts, jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, accounts, authMiddleware, cfg.Avatar.MaxBytes)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

func newAvatarStore(ctx context.Context, cfg config.Config, dbConn *sql.DB) (services.AvatarStore, error) {
	switch cfg.Avatar.Backend {
	case config.AvatarBackendDB, "":
		return store.NewAvatarRepository(dbConn), nil
	case config.AvatarBackendMinio:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewAvatarObjectStore(client), nil
	case config.AvatarBackendGCS:
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewAvatarObjectStore(client), nil
	default:
		return nil, fmt.Errorf("unknown avatar storage backend %q", cfg.Avatar.Backend)
	}
}

func newEventBus(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.MQ.Backend {
	case config.MQBackendNone, "":
		return nil, nil
	case config.MQBackendRabbitMQ:
		client, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case config.MQBackendPubSub:
		client, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	slog.Info("starting account server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
