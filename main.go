package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/community-service/internal/config"
	"github.com/SAP-F-2025/community-service/internal/events"
	"github.com/SAP-F-2025/community-service/internal/handlers"
	"github.com/SAP-F-2025/community-service/internal/realtime"
	"github.com/SAP-F-2025/community-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/community-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/community-service/internal/services"
	"github.com/SAP-F-2025/community-service/internal/utils"
	"github.com/SAP-F-2025/community-service/internal/validator"
	"github.com/SAP-F-2025/community-service/pkg"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "community-service",
		Short:        "Level-gated community rooms, messaging and progression",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the lesson-completion consumer",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), envFile)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply schema migrations and reconcile global rooms",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), envFile)
			},
		},
	)

	return root
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})).With("service", cfg.ServiceName)
}

func migrate(ctx context.Context, envFile string) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	return postgres.Migrate(ctx, db, logger)
}

func serve(ctx context.Context, envFile string) error {
	// Load configuration
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slogLogger := newLogger(cfg)
	logger := utils.NewSlogLogger(slogLogger)

	shutdownTracing, err := pkg.SetupTracing(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}

	// Initialize database
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}

	// Redis backs the profile/room cache and cross-instance push when configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache and with local push", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
	})
	if err := repoManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	var transport realtime.Transport
	if redisClient != nil {
		transport = realtime.NewRedisTransport(redisClient, slogLogger)
	} else {
		transport = realtime.NewLocalTransport(slogLogger)
	}

	bus, err := events.NewBus(cfg.Kafka, slogLogger)
	if err != nil {
		return err
	}
	eventPublisher := events.NewWatermillEventPublisher(bus.Publisher, cfg.Kafka.DomainEventsTopic, slogLogger)

	v := validator.New()

	smConfig := services.DefaultServiceManagerConfig()
	smConfig.Pagination = services.PageLimits{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize}

	serviceManager := services.NewServiceManager(services.ServiceDependencies{
		DB:             db,
		Repo:           repoManager.GetRepository(),
		RepoManager:    repoManager,
		Logger:         slogLogger,
		Validator:      v,
		Transport:      transport,
		EventPublisher: eventPublisher,
	}, smConfig)
	if err := serviceManager.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	consumer, err := events.NewConsumer(bus, cfg.Kafka.LessonCompletedTopic, serviceManager.Progression(), v, slogLogger)
	if err != nil {
		return err
	}

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go func() {
		if err := consumer.Run(consumerCtx); err != nil {
			logger.Error("Event consumer stopped", "error", err)
		}
	}()

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, cfg.AllowedOrigins)

	verifier := casdoor.NewIdentityCasdoor(cfg.Casdoor)
	handlers.NewHandlerManager(serviceManager, verifier, logger, cfg.ServiceName).SetupRoutes(router)

	// cancelling baseCtx ends open SSE streams, which Shutdown would otherwise wait on
	baseCtx, cancelRequests := context.WithCancel(context.Background())
	defer cancelRequests()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "kafka", bus.IsKafka(), "redis", redisClient != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelRequests()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", "error", err)
	}

	stopConsumer()
	if err := consumer.Close(); err != nil {
		logger.Warn("Failed to close event consumer", "error", err)
	}

	if err := transport.Close(); err != nil {
		logger.Warn("Failed to close realtime transport", "error", err)
	}

	// closes the database pool and the redis client
	if err := serviceManager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Failed to shutdown services", "error", err)
	}
	if err := bus.Close(); err != nil {
		logger.Warn("Failed to close event bus", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Failed to flush traces", "error", err)
	}

	logger.Info("Server exited")
	return nil
}
