package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"peerprep/interview/internal/auth"
	"peerprep/interview/internal/channel"
	"peerprep/interview/internal/config"
	"peerprep/interview/internal/events"
	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/invites"
	"peerprep/interview/internal/jobs"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/repositories/memory"
	mongorepo "peerprep/interview/internal/repositories/mongo"
	"peerprep/interview/internal/repositories/principals"
	"peerprep/interview/internal/routers"
	"peerprep/interview/internal/secrets"
	"peerprep/interview/internal/sessions"
	"peerprep/interview/internal/utils"
)

// app holds the wired service and everything that needs stopping.
type app struct {
	router     *chi.Mux
	reconciler *jobs.ChannelReconciler
	dispatcher *channel.InlineDispatcher
	worker     *channel.Worker
	closers    []func(context.Context)
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	checks := map[string]handlers.Pinger{}

	var (
		sessionStore sessions.Store
		inviteStore  invites.Store
	)
	if cfg.MongoURI != "" {
		client, err := mongorepo.NewClient(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.closers = append(a.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		checks["mongo"] = client

		sessionRepo, err := mongorepo.NewSessionRepo(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("session repo: %w", err)
		}
		inviteRepo, err := mongorepo.NewInviteRepo(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("invite repo: %w", err)
		}
		sessionStore, inviteStore = sessionRepo, inviteRepo
		logger.Info("Using MongoDB session store", zap.String("db", cfg.MongoDB))
	} else {
		sessionStore, inviteStore = memory.NewSessionRepo(), memory.NewInviteRepo()
		logger.Warn("MONGO_URI not set, sessions are kept in memory")
	}

	// principal provisioning is optional; auth still works without it
	var (
		provisioner auth.Provisioner
		profiles    sessions.ProfileLookup
	)
	if db, err := principals.Open(cfg.PrincipalDSN, cfg.PrincipalSQLitePath); err != nil {
		logger.Warn("Failed to open principal database, provisioning disabled", zap.Error(err))
	} else {
		repo := &principals.Repository{DB: db}
		provisioner, profiles = repo, repo
		checks["principals"] = handlers.PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		})
	}

	var provider channel.Provider = channel.NopProvider{Logger: logger}
	if cfg.ChatEnabled() {
		provider = channel.NewHTTPProvider(channel.HTTPProviderConfig{
			APIKey:       cfg.ChatAPIKey,
			APISecret:    cfg.ChatAPISecret,
			ChatBaseURL:  cfg.ChatBaseURL,
			VideoBaseURL: cfg.VideoBaseURL,
		})
	} else {
		logger.Warn("Chat credentials not set, channel sync is logged only")
	}
	adapter := channel.NewAdapter(provider, sessionStore, logger)
	a.dispatcher = channel.NewInlineDispatcher(adapter, logger)

	var dispatcher channel.Dispatcher = a.dispatcher
	opts := sessions.Options{FailClosed: cfg.AccessCodeFailClosed, Profiles: profiles}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func(context.Context) { _ = rdb.Close() })
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		opts.Publisher = events.NewPublisher(rdb)

		if cfg.ChannelQueue == config.QueueRedis {
			queue := channel.NewRedisQueue(rdb, logger)
			queue.Fallback = a.dispatcher
			dispatcher = queue
			a.worker = channel.NewWorker(rdb, adapter, logger)
			logger.Info("Channel tasks queued on redis", zap.String("key", channel.QueueKey))
		}
	}

	verifier := secrets.NewBcrypt(cfg.BcryptCost)
	sessionService := sessions.NewService(sessionStore, verifier, dispatcher, logger, opts)
	inviteManager := invites.NewManager(inviteStore, sessionService, verifier, logger)
	a.reconciler = jobs.NewChannelReconciler(sessionStore, dispatcher, cfg.ReconcileSchedule, logger)

	protect := auth.Middleware(auth.NewJWTResolver(cfg.JWTSecret, provisioner, logger), logger)

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, metrics.Middleware("interview"))

	routers.HealthRoutes(router, handlers.NewHealthHandler(checks))
	routers.SessionRoutes(router, handlers.NewSessionHandler(sessionService, inviteManager, logger), protect)
	routers.ChatRoutes(router, handlers.NewChatHandler(channel.NewTokenIssuer(cfg.ChatAPISecret), logger), protect)
	a.router = router
	return a, nil
}

// start launches the background work. Cancelling ctx stops the worker.
func (a *app) start(ctx context.Context, logger *zap.Logger) {
	if err := a.reconciler.Start(); err != nil {
		logger.Error("Failed to start channel reconciler", zap.Error(err))
	}
	if a.worker != nil {
		go a.worker.Run(ctx)
	}
}

func (a *app) stop(ctx context.Context) {
	a.reconciler.Stop()
	if a.worker != nil {
		select {
		case <-a.worker.Done():
		case <-ctx.Done():
		}
	}
	a.dispatcher.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger := utils.NewLogger(cfg.AppEnv)
	defer logger.Sync()

	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	application, err := newApp(connectCtx, cfg, logger)
	cancelConnect()
	if err != nil {
		logger.Fatal("Failed to initialize service", zap.Error(err))
	}
	application.start(ctx, logger)

	serverAddr := ":" + cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      application.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Interview service starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("Interview service shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	cancelWorkers()
	application.stop(shutdownCtx)

	logger.Info("Interview service exited")
}
