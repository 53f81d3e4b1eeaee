package config

import (
	"time"

	"github.com/vietddude/avatar/internal/core/domain"
	"github.com/vietddude/avatar/internal/infra/fetch"
	redisclient "github.com/vietddude/avatar/internal/infra/redis"
	"github.com/vietddude/avatar/internal/infra/storage/postgres"
	"github.com/vietddude/avatar/internal/infra/surface"
)

// Registry backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Avatar   AvatarConfig       `yaml:"avatar"`
	Registry RegistryConfig     `yaml:"registry"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Fetch    fetch.Config       `yaml:"fetch"`
	Probe    surface.Config     `yaml:"probe"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 disables the gRPC server
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// AvatarConfig holds source ordering and display defaults.
type AvatarConfig struct {
	Order         []domain.SourceType `yaml:"order"`
	Colors        []string            `yaml:"colors"`
	ColorStrategy string              `yaml:"color_strategy"` // sum, xxh3
	DefaultSize   int                 `yaml:"default_size"`
}

// RegistryConfig selects where failed sources are remembered.
type RegistryConfig struct {
	Backend string        `yaml:"backend"` // memory, redis, postgres
	Scope   string        `yaml:"scope"`   // process, session
	TTL     time.Duration `yaml:"ttl"`     // 0 = remember forever
}
