package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Retry       RetryConfig       `yaml:"retry"`
	Logging     LogConfig         `yaml:"logging"`
}

// ServerConfig contains settings for the listener and the served content
type ServerConfig struct {
	Address          string `yaml:"address"`
	Port             int    `yaml:"port"`
	DocRoot          string `yaml:"doc_root"`
	FrontendLocation string `yaml:"frontend_location"`
	BufferSize       int    `yaml:"buffer_size"`   // bytes read per request
	ReadTimeout      int    `yaml:"read_timeout"`  // in seconds
	WriteTimeout     int    `yaml:"write_timeout"` // in seconds
}

// ConcurrencyConfig contains settings for concurrency control
type ConcurrencyConfig struct {
	MaxTasks int `yaml:"max_tasks"` // connections handled at the same time
}

// RetryConfig controls the backoff applied to temporary accept errors
type RetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MaxRetries    int     `yaml:"max_retries"`
	InitialDelay  int     `yaml:"initial_delay"` // in milliseconds
	MaxDelay      int     `yaml:"max_delay"`     // in milliseconds
	BackoffFactor float64 `yaml:"backoff_factor"`
	JitterFactor  float64 `yaml:"jitter_factor"`
}

// LogConfig contains settings for logging
type LogConfig struct {
	LogToFile       bool   `yaml:"log_to_file"`
	LogFilePath     string `yaml:"log_file_path"`
	MaxSize         int    `yaml:"max_size"`          // maximum size in megabytes
	MaxBackups      int    `yaml:"max_backups"`       // maximum number of old log files to retain
	MaxAge          int    `yaml:"max_age"`           // maximum number of days to retain old log files
	Compress        bool   `yaml:"compress"`          // compress determines if the rotated log files should be compressed
	ExchangeLogPath string `yaml:"exchange_log_path"` // raw request/response dump
}

// Environment variables that override the configuration file
const (
	EnvDocRoot          = "RAWHTTPD_DOC_ROOT"
	EnvFrontendLocation = "RAWHTTPD_FRONTEND_LOCATION"
	EnvPort             = "RAWHTTPD_PORT"
)

// LoadDefault returns a configuration with default values
func LoadDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          "",
			Port:             31337,
			DocRoot:          "../resources/",
			FrontendLocation: "http://localhost:4200",
			BufferSize:       1024 * 1024,
			ReadTimeout:      10,
			WriteTimeout:     30,
		},
		Concurrency: ConcurrencyConfig{
			MaxTasks: 16,
		},
		Retry: RetryConfig{
			Enabled:       true,
			MaxRetries:    10,
			InitialDelay:  5,
			MaxDelay:      1000,
			BackoffFactor: 2.0,
			JitterFactor:  0.1,
		},
		Logging: LogConfig{
			LogToFile:       false,
			LogFilePath:     "rawhttpd.log",
			MaxSize:         10,
			MaxBackups:      3,
			MaxAge:          28,
			Compress:        true,
			ExchangeLogPath: "exchange.log",
		},
	}
}

// Load reads configuration from a file over the default values. Keys missing
// from the file keep their defaults, keys present win, including false and 0.
func Load(configPath string) (*Config, error) {
	cfg := LoadDefault()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// LoadOrDefault attempts to load configuration from a file
// If the file doesn't exist or can't be parsed, it returns default configuration
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Log the error but continue with defaults
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config from %s: %v\n", configPath, err)
		fmt.Fprintf(os.Stderr, "Using default configuration\n")
		cfg = LoadDefault()

		// Even with default config, apply the environment overrides
		ApplyEnv(cfg)
	}
	return cfg
}

// ApplyEnv overrides settings from RAWHTTPD_* environment variables
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDocRoot); v != "" {
		cfg.Server.DocRoot = v
	}
	if v := os.Getenv(EnvFrontendLocation); v != "" {
		cfg.Server.FrontendLocation = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
}

// Validate checks that the configuration can be served
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Server.DocRoot == "" {
		return fmt.Errorf("document root must not be empty")
	}
	if c.Server.FrontendLocation == "" {
		return fmt.Errorf("frontend location must not be empty")
	}
	if c.Server.BufferSize < 2 {
		return fmt.Errorf("buffer size must be at least 2 bytes, got %d", c.Server.BufferSize)
	}
	if c.Concurrency.MaxTasks <= 0 {
		return fmt.Errorf("max tasks must be positive, got %d", c.Concurrency.MaxTasks)
	}
	return nil
}

// ListenAddress returns the host:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
