package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"REDIS_HOST": "cache.internal",
		"REDIS_PORT": "6380",
		"REDIS_DB":   "2",
		"MQ_HOST":    "broker.internal",
		"MQ_USER":    "worker",
		"MQ_PASS":    "secret",
		"MQ_QUEUE":   "jobs",
	}
}

func TestLoadFromMap_Defaults(t *testing.T) {
	cfg, err := LoadFromMap("", requiredEnv())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "cache.internal", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "broker.internal", cfg.RabbitMQ.Host)
	assert.Equal(t, "worker", cfg.RabbitMQ.User)
	assert.Equal(t, "secret", cfg.RabbitMQ.Password)
	assert.Equal(t, "jobs", cfg.RabbitMQ.Queue)

	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
	assert.Equal(t, "/", cfg.RabbitMQ.VHost)
	assert.True(t, cfg.RabbitMQ.DeclareQueues)
	assert.Equal(t, 1, cfg.Worker.Concurrency)
	assert.Equal(t, 0, cfg.Worker.Prefetch)
	assert.Equal(t, 30*time.Second, cfg.Worker.JobTimeout)
	assert.False(t, cfg.Worker.NackOnFailure)
	assert.Equal(t, 0, cfg.Health.Port)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromMap_MissingRequired(t *testing.T) {
	for _, key := range []string{"REDIS_HOST", "REDIS_PORT", "REDIS_DB", "MQ_HOST", "MQ_USER", "MQ_PASS", "MQ_QUEUE"} {
		t.Run(key, func(t *testing.T) {
			environ := requiredEnv()
			delete(environ, key)

			cfg, err := LoadFromMap("", environ)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStartupConfig)
			assert.Contains(t, err.Error(), key)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadFromMap_InvalidNumber(t *testing.T) {
	environ := requiredEnv()
	environ["REDIS_PORT"] = "not-a-port"

	_, err := LoadFromMap("", environ)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStartupConfig)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromMap(tt.filePath, requiredEnv())

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrStartupConfig)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 5673, cfg.RabbitMQ.Port)
			assert.Equal(t, "/jobs", cfg.RabbitMQ.VHost)
			assert.False(t, cfg.RabbitMQ.DeclareQueues)
			assert.Equal(t, 15*time.Second, cfg.RabbitMQ.Heartbeat)
			assert.Equal(t, 4, cfg.Worker.Concurrency)
			assert.Equal(t, 8, cfg.Worker.Prefetch)
			assert.Equal(t, 2*time.Minute, cfg.Worker.LockTTL)
			assert.True(t, cfg.Worker.NackOnFailure)
			assert.Equal(t, "json", cfg.Logging.Format)
			assert.Equal(t, 8081, cfg.Health.Port)
			assert.Equal(t, "staging", cfg.App.Environment)

			// unset in the file, still defaulted
			assert.Equal(t, 5, cfg.Redis.RetryAttempts)
		})
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	environ := requiredEnv()
	environ["WORKER_CONCURRENCY"] = "2"
	environ["LOG_LEVEL"] = "warn"

	cfg, err := LoadFromMap("testdata/valid_config.yaml", environ)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Worker.Concurrency)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 8, cfg.Worker.Prefetch)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	for key, value := range requiredEnv() {
		t.Setenv(key, value)
	}
	t.Setenv("WORKER_JOB_TIMEOUT", "5s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "jobs", cfg.RabbitMQ.Queue)
	assert.Equal(t, 5*time.Second, cfg.Worker.JobTimeout)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadFromMap("", requiredEnv())
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "redis port too high",
			mutate:    func(c *Config) { c.Redis.Port = 70000 },
			errString: "invalid redis port",
		},
		{
			name:      "negative redis db",
			mutate:    func(c *Config) { c.Redis.DB = -1 },
			errString: "invalid redis db",
		},
		{
			name:      "rabbitmq port too low",
			mutate:    func(c *Config) { c.RabbitMQ.Port = 0 },
			errString: "invalid rabbitmq port",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "worker concurrency must be greater than 0",
		},
		{
			name:      "negative prefetch",
			mutate:    func(c *Config) { c.Worker.Prefetch = -1 },
			errString: "worker prefetch must not be negative",
		},
		{
			name:      "zero job timeout",
			mutate:    func(c *Config) { c.Worker.JobTimeout = 0 },
			errString: "worker job_timeout must be greater than 0",
		},
		{
			name:      "zero lock ttl",
			mutate:    func(c *Config) { c.Worker.LockTTL = 0 },
			errString: "worker lock_ttl must be greater than 0",
		},
		{
			name:      "health port out of range",
			mutate:    func(c *Config) { c.Health.Port = 65536 },
			errString: "invalid health port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.errString == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStartupConfig)
			assert.Contains(t, err.Error(), tt.errString)
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	cfg, err := LoadFromMap("testdata/invalid_concurrency.yaml", requiredEnv())
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker concurrency must be greater than 0")
}
