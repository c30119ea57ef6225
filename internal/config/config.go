// Package config loads the corkboard configuration from an optional
// corkboard.yml file with environment-variable overrides. Validation is
// fail-fast: every problem is detected at startup, before any resources are
// allocated.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config file looked for when none is specified.
const DefaultConfigFile = "corkboard.yml"

// Config is the top-level corkboard.yml configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Board  BoardConfig  `yaml:"board"`
}

// ServerConfig specifies the transport daemon's listen address.
type ServerConfig struct {
	Listen string `yaml:"listen"` // host:port, default ":8080"
}

// RedisConfig specifies the Redis backend connection.
type RedisConfig struct {
	URL string `yaml:"url"` // redis://host:port/db, default "redis://localhost:6379"
}

// BoardConfig tunes the collaboration behavior shared by every board.
type BoardConfig struct {
	LockTTL         time.Duration `yaml:"lock_ttl"`         // edit lock lifetime, default 15s
	SweepInterval   time.Duration `yaml:"sweep_interval"`   // expired-lock sweep period, default lock_ttl/2
	MutationTimeout time.Duration `yaml:"mutation_timeout"` // optimistic commit budget, default 5s
	DragThrottle    time.Duration `yaml:"drag_throttle"`    // pointer sample coalescing window, default 50ms
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Listen: ":8080"},
		Redis:  RedisConfig{URL: "redis://localhost:6379"},
		Board: BoardConfig{
			LockTTL:         15 * time.Second,
			MutationTimeout: 5 * time.Second,
			DragThrottle:    50 * time.Millisecond,
		},
	}
}

// Load reads the configuration from the given path, falling back to defaults
// if the file does not exist, then applies environment overrides
// (CORKBOARD_LISTEN, REDIS_URL) and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if listen := os.Getenv("CORKBOARD_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration and fills derived defaults.
// Returns the first validation error encountered.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen cannot be empty")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url cannot be empty")
	}
	if _, err := redis.ParseURL(c.Redis.URL); err != nil {
		return fmt.Errorf("invalid redis.url: %w", err)
	}

	if c.Board.LockTTL <= 0 {
		return fmt.Errorf("board.lock_ttl must be positive")
	}
	if c.Board.SweepInterval <= 0 {
		c.Board.SweepInterval = c.Board.LockTTL / 2
	}
	if c.Board.MutationTimeout <= 0 {
		return fmt.Errorf("board.mutation_timeout must be positive")
	}
	if c.Board.DragThrottle < 0 {
		return fmt.Errorf("board.drag_throttle cannot be negative")
	}

	return nil
}

// RedisOptions converts the validated Redis URL into go-redis options.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis.url: %w", err)
	}
	return opts, nil
}
