package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/avatar/internal/core/policy"
	"github.com/vietddude/avatar/internal/resolver"
)

// Load reads configuration from a YAML file. An empty path yields the
// defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Avatar.DefaultSize == 0 {
		c.Avatar.DefaultSize = 50
	}
	if c.Avatar.ColorStrategy == "" {
		c.Avatar.ColorStrategy = policy.ColorStrategySum
	}
	if c.Registry.Backend == "" {
		c.Registry.Backend = BackendMemory
	}
	if c.Registry.Scope == "" {
		c.Registry.Scope = resolver.ScopeProcess
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "avatar"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Second
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 5 * time.Second
	}
}

// Validate checks enumerated settings and backend requirements.
func (c *AppConfig) Validate() error {
	var errs []error

	switch c.Registry.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("registry backend redis requires redis.url"))
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("registry backend postgres requires database.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown registry backend %q", c.Registry.Backend))
	}

	if c.Registry.Scope != resolver.ScopeProcess && c.Registry.Scope != resolver.ScopeSession {
		errs = append(errs, fmt.Errorf("unknown registry scope %q", c.Registry.Scope))
	}
	if c.Registry.TTL < 0 {
		errs = append(errs, errors.New("registry ttl must not be negative"))
	}

	switch c.Avatar.ColorStrategy {
	case policy.ColorStrategySum, policy.ColorStrategyXXH3:
	default:
		errs = append(errs, fmt.Errorf("unknown color strategy %q", c.Avatar.ColorStrategy))
	}
	for _, t := range c.Avatar.Order {
		if !t.Valid() {
			errs = append(errs, fmt.Errorf("unknown source type %q in avatar.order", t))
		}
	}
	if c.Avatar.DefaultSize < 0 {
		errs = append(errs, errors.New("avatar.default_size must be positive"))
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
