package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/cinepass/cinepass/internal/config"
	"github.com/cinepass/cinepass/internal/events"
	"github.com/cinepass/cinepass/internal/gateway/iamport"
	"github.com/cinepass/cinepass/internal/postgres"
	"github.com/cinepass/cinepass/internal/redis"
	postgresrepo "github.com/cinepass/cinepass/internal/repository/postgres"
	redisrepo "github.com/cinepass/cinepass/internal/repository/redis"
	"github.com/cinepass/cinepass/internal/service"
	"github.com/cinepass/cinepass/internal/service/booking"
	"github.com/cinepass/cinepass/internal/tasks"
	httpgin "github.com/cinepass/cinepass/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	tasks      *tasks.Runner
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewScreeningsPubSub(rdb)
	limiter := redisrepo.NewSlidingWindowLimiter(
		rdb,
		"holds",
		cfg.Booking.RateLimit,
		cfg.Booking.RateWindow,
	)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	// Payment gateway and event publisher
	gw := iamport.New(iamport.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		APIKey:    cfg.Gateway.APIKey,
		APISecret: cfg.Gateway.APISecret,
		Timeout:   cfg.Gateway.Timeout,
	})
	publisher := events.NewPublisher(cfg.RabbitMQ.URL)

	// Initialize services
	services := service.NewServices(store, cache, pubsub, limiter, publisher, gw, service.Config{
		Booking: booking.Config{
			MinHoldTTL: cfg.Booking.MinHoldTTL,
			MaxHoldTTL: cfg.Booking.MaxHoldTTL,
		},
	})

	// Background reclaim of expired holds
	taskRunner, err := tasks.NewRunner(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		tasks.NewHandler(services.Booking, logger),
		cfg.Booking.ReclaimCron,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize task runner: %w", err)
	}

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
		tasks: taskRunner,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Start background workers
	g.Go(func() error {
		a.logger.Info("task runner started", "cron", a.cfg.Booking.ReclaimCron)
		if err := a.tasks.Run(); err != nil {
			return fmt.Errorf("failed to start task runner: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down")
		a.tasks.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
