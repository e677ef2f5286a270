// Package config loads LogCar's configuration surface: chunking/fetch
// sizing, the optional confidentiality layer, platform scope, and the HTTP
// server, from defaults, an optional YAML file, and LOGCAR_-prefixed
// environment variables, in that precedence order, layered with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/logcar/logcar/internal/logcar/record"
)

// Config holds all of LogCar's runtime configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StorageConfig bounds the log-as-storage engine: chunk sizing, fragment
// budget, fetch sizing, confidentiality, and platform scope.
type StorageConfig struct {
	MaxChunkLength       int    `mapstructure:"max_chunk_length"`
	MaxFragmentsPerWrite int    `mapstructure:"max_fragments_per_write"`
	MaxLogRequestSize    int    `mapstructure:"max_log_request_size"`
	EncryptionEnabled    bool   `mapstructure:"encryption_enabled"`
	EncryptionKey        string `mapstructure:"encryption_key"`
	DeploymentID         string `mapstructure:"deployment_id"`
	EnvironmentID        string `mapstructure:"environment_id"`
	BackboardURL         string `mapstructure:"backboard_url"`
}

// Scope returns the platform scope search queries run against: DeploymentID
// takes precedence over EnvironmentID when both are set.
func (s StorageConfig) Scope() string {
	if s.DeploymentID != "" {
		return s.DeploymentID
	}
	return s.EnvironmentID
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig selects which Logger implementation internal/logger builds.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Stream   string `mapstructure:"stream"` // "console", "file", or "multi"
	FilePath string `mapstructure:"file_path"`
}

// Load reads configuration from an optional file at configPath and from the
// environment, layered over built-in defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("logcar")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/logcar/")
	}

	v.SetEnvPrefix("LOGCAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only reaches keys viper already knows about, so the keys
	// with no default are bound to their environment variables explicitly.
	for _, key := range []string{
		"storage.encryption_key",
		"storage.deployment_id",
		"storage.environment_id",
		"storage.backboard_url",
		"logging.file_path",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.max_chunk_length", 60000)
	v.SetDefault("storage.max_fragments_per_write", record.DefaultMaxFragmentsPerWrite)
	v.SetDefault("storage.max_log_request_size", 5000)
	v.SetDefault("storage.encryption_enabled", false)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.stream", "console")
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Storage.MaxChunkLength <= 0 {
		return fmt.Errorf("storage.max_chunk_length must be positive")
	}
	if c.Storage.MaxFragmentsPerWrite <= 0 {
		return fmt.Errorf("storage.max_fragments_per_write must be positive")
	}
	if c.Storage.MaxLogRequestSize <= 0 {
		return fmt.Errorf("storage.max_log_request_size must be positive")
	}
	if c.Storage.EncryptionEnabled && c.Storage.EncryptionKey == "" {
		return fmt.Errorf("storage.encryption_key is required when storage.encryption_enabled is true")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	switch c.Logging.Stream {
	case "console", "file", "multi":
	default:
		return fmt.Errorf("invalid logging.stream: %q", c.Logging.Stream)
	}
	if (c.Logging.Stream == "file" || c.Logging.Stream == "multi") && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path is required for logging.stream %q", c.Logging.Stream)
	}
	return nil
}

// RecordConfig projects the storage half of Config into record.Config, the
// shape the record façade is constructed with.
func (c *Config) RecordConfig() record.Config {
	return record.Config{
		MaxChunkLength:       c.Storage.MaxChunkLength,
		MaxFragmentsPerWrite: c.Storage.MaxFragmentsPerWrite,
		MaxLogRequestSize:    c.Storage.MaxLogRequestSize,
		EncryptionEnabled:    c.Storage.EncryptionEnabled,
		EncryptionKey:        c.Storage.EncryptionKey,
		DeploymentID:         c.Storage.Scope(),
	}
}
