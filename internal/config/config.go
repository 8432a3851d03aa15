package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// ErrStartupConfig marks configuration problems that must stop the process
// before it starts consuming.
var ErrStartupConfig = errors.New("startup configuration error")

// Config represents the complete worker configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables. The connection settings tagged required
// must always come from the environment.
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
	Health   HealthConfig   `yaml:"health"`
	App      AppConfig      `yaml:"app"`
}

// RedisConfig holds the job store connection configuration
type RedisConfig struct {
	Host          string        `yaml:"host" env:"REDIS_HOST,required"`
	Port          int           `yaml:"port" env:"REDIS_PORT,required"`
	DB            int           `yaml:"db" env:"REDIS_DB,required"`
	Password      string        `yaml:"password" env:"REDIS_PASSWORD"`
	RetryAttempts int           `yaml:"retry_attempts" env:"REDIS_CONNECT_RETRIES"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"REDIS_CONNECT_RETRY_INTERVAL"`
}

// RabbitMQConfig holds the message bus connection configuration
type RabbitMQConfig struct {
	Host          string        `yaml:"host" env:"MQ_HOST,required"`
	Port          int           `yaml:"port" env:"MQ_PORT"`
	User          string        `yaml:"user" env:"MQ_USER,required"`
	Password      string        `yaml:"password" env:"MQ_PASS,required"`
	VHost         string        `yaml:"vhost" env:"MQ_VHOST"`
	Queue         string        `yaml:"queue" env:"MQ_QUEUE,required"`
	DeclareQueues bool          `yaml:"declare_queues" env:"MQ_DECLARE_QUEUES"`
	RetryAttempts int           `yaml:"retry_attempts" env:"MQ_CONNECT_RETRIES"`
	RetryInterval time.Duration `yaml:"retry_interval" env:"MQ_CONNECT_RETRY_INTERVAL"`
	Heartbeat     time.Duration `yaml:"heartbeat" env:"MQ_HEARTBEAT"`
}

// WorkerConfig holds consume loop settings
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency" env:"WORKER_CONCURRENCY"`
	Prefetch        int           `yaml:"prefetch" env:"WORKER_PREFETCH"`
	JobTimeout      time.Duration `yaml:"job_timeout" env:"WORKER_JOB_TIMEOUT"`
	LockTTL         time.Duration `yaml:"lock_ttl" env:"WORKER_LOCK_TTL"`
	NackOnFailure   bool          `yaml:"nack_on_failure" env:"WORKER_NACK_ON_FAILURE"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"WORKER_SHUTDOWN_TIMEOUT"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL"`
	Format       string `yaml:"format" env:"LOG_FORMAT"`
	Output       string `yaml:"output" env:"LOG_OUTPUT"`
	EnableCaller bool   `yaml:"enable_caller" env:"LOG_ENABLE_CALLER"`
}

// HealthConfig holds the probe server configuration. Port 0 disables it.
type HealthConfig struct {
	Port int `yaml:"port" env:"HEALTH_PORT"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name" env:"APP_NAME"`
	Version     string `yaml:"version" env:"APP_VERSION"`
	Environment string `yaml:"environment" env:"APP_ENVIRONMENT"`
}

// Default returns the configuration used when neither the YAML file nor the
// environment set a value.
func Default() Config {
	return Config{
		Redis: RedisConfig{
			RetryAttempts: 5,
			RetryInterval: 2 * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			Port:          5672,
			VHost:         "/",
			DeclareQueues: true,
			RetryAttempts: 5,
			RetryInterval: 2 * time.Second,
			Heartbeat:     10 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:     1,
			Prefetch:        0,
			JobTimeout:      30 * time.Second,
			LockTTL:         60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		App: AppConfig{
			Name:        "jobs-worker",
			Version:     "dev",
			Environment: "development",
		},
	}
}

// Load resolves the configuration from the process environment, layered over
// the YAML file at configPath when it is not empty.
func Load(configPath string) (*Config, error) {
	return load(configPath, env.Options{})
}

// LoadFromMap is Load with an explicit environment instead of the process one.
func LoadFromMap(configPath string, environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(configPath, env.Options{Environment: environ})
}

func load(configPath string, opts env.Options) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %w", ErrStartupConfig, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file: %w", ErrStartupConfig, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartupConfig, err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Redis.Host == "" {
		return invalid("redis host is required")
	}

	if c.Redis.Port < MinPort || c.Redis.Port > MaxPort {
		return invalid("invalid redis port: %d (must be between %d and %d)", c.Redis.Port, MinPort, MaxPort)
	}

	if c.Redis.DB < 0 {
		return invalid("invalid redis db: %d", c.Redis.DB)
	}

	if c.RabbitMQ.Host == "" {
		return invalid("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return invalid("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Queue == "" {
		return invalid("rabbitmq queue name is required")
	}

	if c.Worker.Concurrency <= 0 {
		return invalid("worker concurrency must be greater than 0")
	}

	if c.Worker.Prefetch < 0 {
		return invalid("worker prefetch must not be negative")
	}

	if c.Worker.JobTimeout <= 0 {
		return invalid("worker job_timeout must be greater than 0")
	}

	if c.Worker.LockTTL <= 0 {
		return invalid("worker lock_ttl must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return invalid("worker shutdown_timeout must be greater than 0")
	}

	if c.Health.Port < 0 || c.Health.Port > MaxPort {
		return invalid("invalid health port: %d", c.Health.Port)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStartupConfig, fmt.Sprintf(format, args...))
}
