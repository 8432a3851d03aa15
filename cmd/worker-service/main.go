package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/jobs-worker/internal/config"
	"github.com/cuongbtq/jobs-worker/internal/health"
	"github.com/cuongbtq/jobs-worker/internal/worker"
	"github.com/cuongbtq/jobs-worker/internal/worker/domain"
	"github.com/cuongbtq/jobs-worker/internal/worker/storage"
	"github.com/cuongbtq/jobs-worker/shared/logger"
	"github.com/cuongbtq/jobs-worker/shared/rabbitmq"
	"github.com/cuongbtq/jobs-worker/shared/redis"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// An empty path means environment variables only
	cfg, err := config.Load(os.Getenv("WORKER_SERVICE_CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	redisClient, err := initRedis(&cfg.Redis, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	appLogger.Info("Redis connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	jobStorage := storage.NewStorage(redisClient.GetClient(), cfg.Worker.LockTTL, appLogger.Logger)

	handlerCfg := &worker.HandlerConfig{
		Logger: appLogger.Logger,
		Store:  jobStorage,
		Bus:    rabbitClient,
	}
	// a single worker already handles deliveries one at a time
	if cfg.Worker.Concurrency > 1 {
		handlerCfg.Locker = jobStorage
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:        appLogger.Logger,
		Broker:        rabbitClient,
		Handler:       worker.NewHandler(handlerCfg),
		QueueName:     cfg.RabbitMQ.Queue,
		Concurrency:   cfg.Worker.Concurrency,
		Prefetch:      cfg.Worker.Prefetch,
		JobTimeout:    cfg.Worker.JobTimeout,
		NackOnFailure: cfg.Worker.NackOnFailure,
	})

	var healthServer *health.Server
	if cfg.Health.Port > 0 {
		healthServer = health.NewServer(cfg.Health.Port, &health.Dependencies{
			Logger:      appLogger.Logger,
			ServiceName: cfg.App.Name,
			Checks: map[string]health.CheckFunc{
				"redis": redisClient.Ping,
				"rabbitmq": func(context.Context) error {
					if !rabbitClient.IsConnected() {
						return errors.New("connection closed")
					}
					return nil
				},
			},
		})

		go func() {
			if err := healthServer.Start(); err != nil {
				appLogger.Error("Health server error", slog.Any("error", err))
			}
		}()
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
		slog.String("queue", cfg.RabbitMQ.Queue),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-errChan:
		if err != nil {
			appLogger.Error("Worker error", slog.Any("error", err))
			runErr = err
		}
	}

	// Stop dispatching new deliveries
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if healthServer != nil {
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Health server shutdown failed", slog.Any("error", err))
		}
	}

	if runErr != nil {
		return runErr
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initRedis initializes the job store client
func initRedis(cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	redisConfig := &redis.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		DB:            cfg.DB,
		Password:      cfg.Password,
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
	}

	return redis.NewClient(redisConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		User:          cfg.User,
		Password:      cfg.Password,
		VHost:         cfg.VHost,
		QueueName:     cfg.Queue,
		DeclareQueues: cfg.DeclareQueues,
		Destinations:  []string{domain.CompletionDestination},
		RetryAttempts: cfg.RetryAttempts,
		RetryInterval: cfg.RetryInterval,
		Heartbeat:     cfg.Heartbeat,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
