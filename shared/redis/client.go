package redis

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Host          string
	Port          int
	DB            int
	Password      string
	RetryAttempts int
	RetryInterval time.Duration
	PingTimeout   time.Duration
}

// Client represents a Redis client
type Client struct {
	rdb    *goredis.Client
	config *Config
	logger *slog.Logger
}

// NewClient creates a new Redis client and verifies the connection, retrying
// the initial ping up to RetryAttempts times.
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	addr := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))

	logger.Info("Connecting to Redis",
		slog.String("addr", addr),
		slog.Int("db", config.DB),
	)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: config.Password,
		DB:       config.DB,
	})

	client := &Client{
		rdb:    rdb,
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		rdb.Close()
		return nil, err
	}

	return client, nil
}

func (c *Client) connect() error {
	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	pingTimeout := c.config.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = c.rdb.Ping(ctx).Err()
		cancel()

		if err == nil {
			c.logger.Info("Successfully connected to Redis")
			return nil
		}

		c.logger.Error("Failed to ping Redis",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	return fmt.Errorf("failed to connect to Redis after %d attempts: %w", attempts, err)
}

// GetClient returns the underlying go-redis client
func (c *Client) GetClient() *goredis.Client {
	return c.rdb
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	c.logger.Info("Closing Redis connection")

	if err := c.rdb.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection",
			slog.Any("error", err),
		)
		return err
	}

	c.logger.Info("Redis connection closed successfully")
	return nil
}
