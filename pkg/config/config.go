package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/compozy/bookstore/pkg/config/definition"
)

// Config represents the complete configuration for the bookstore service.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"min=0"           env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"min=0"           env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"           env:"SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig contains database connection and pool configuration.
type DatabaseConfig struct {
	ConnString      string          `koanf:"conn_string"        env:"DB_CONN_STRING"`
	Host            string          `koanf:"host"               env:"DB_HOST"`
	Port            string          `koanf:"port"               env:"DB_PORT"`
	User            string          `koanf:"user"               env:"DB_USER"`
	Password        SensitiveString `koanf:"password"           env:"DB_PASSWORD"           sensitive:"true"`
	DBName          string          `koanf:"name"               env:"DB_NAME"`
	SSLMode         string          `koanf:"ssl_mode"           env:"DB_SSL_MODE"           validate:"omitempty,sslmode"`
	MaxOpenConns    int             `koanf:"max_open_conns"     env:"DB_MAX_OPEN_CONNS"     validate:"min=0"`
	MaxIdleConns    int             `koanf:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     validate:"min=0"`
	ConnMaxLifetime time.Duration   `koanf:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  validate:"min=0"`
	ConnMaxIdleTime time.Duration   `koanf:"conn_max_idle_time" env:"DB_CONN_MAX_IDLE_TIME" validate:"min=0"`
	ConnectTimeout  time.Duration   `koanf:"connect_timeout"    env:"DB_CONNECT_TIMEOUT"    validate:"min=0"`
	PingTimeout     time.Duration   `koanf:"ping_timeout"       env:"DB_PING_TIMEOUT"       validate:"min=0"`
	ConnectRetries  int             `koanf:"connect_retries"    env:"DB_CONNECT_RETRIES"    validate:"min=0"`
	RollbackTimeout time.Duration   `koanf:"rollback_timeout"   env:"DB_ROLLBACK_TIMEOUT"   validate:"min=0"`
	AutoMigrate     bool            `koanf:"auto_migrate"       env:"DB_AUTO_MIGRATE"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment         string `koanf:"environment"           validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel            string `koanf:"log_level"             validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
	LogJSON             bool   `koanf:"log_json"                                                              env:"RUNTIME_LOG_JSON"`
	LogSource           bool   `koanf:"log_source"                                                            env:"RUNTIME_LOG_SOURCE"`
	DefaultReadStrategy string `koanf:"default_read_strategy" validate:"read_strategy"                        env:"RUNTIME_DEFAULT_READ_STRATEGY"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"    validate:"omitempty,startswith=/"`
}

// SensitiveString holds a secret that must never be printed or serialized.
type SensitiveString string

const redacted = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the underlying secret.
func (s SensitiveString) Value() string {
	return string(s)
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Service loads and validates configuration.
type Service interface {
	Load(ctx context.Context, sources ...Source) (*Config, error)
	Validate(config *Config) error
	GetSource(key string) SourceType
}

// Source is one layer of configuration values.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
	Close() error
}

// SourceType identifies where a configuration value came from.
type SourceType string

const (
	SourceDefault SourceType = "default"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceCLI     SourceType = "cli"
)

// Metadata tracks configuration loading information.
type Metadata struct {
	Sources  map[string]SourceType
	LoadedAt time.Time
}

// Load loads configuration from defaults and the environment.
func Load() (*Config, error) {
	return NewService().Load(context.Background())
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultFromRegistry(definition.CreateRegistry())
}

func defaultFromRegistry(registry *definition.Registry) *Config {
	return &Config{
		Server: ServerConfig{
			Host:            getString(registry, "server.host"),
			Port:            getInt(registry, "server.port"),
			ReadTimeout:     getDuration(registry, "server.read_timeout"),
			WriteTimeout:    getDuration(registry, "server.write_timeout"),
			ShutdownTimeout: getDuration(registry, "server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			ConnString:      getString(registry, "database.conn_string"),
			Host:            getString(registry, "database.host"),
			Port:            getString(registry, "database.port"),
			User:            getString(registry, "database.user"),
			Password:        SensitiveString(getString(registry, "database.password")),
			DBName:          getString(registry, "database.name"),
			SSLMode:         getString(registry, "database.ssl_mode"),
			MaxOpenConns:    getInt(registry, "database.max_open_conns"),
			MaxIdleConns:    getInt(registry, "database.max_idle_conns"),
			ConnMaxLifetime: getDuration(registry, "database.conn_max_lifetime"),
			ConnMaxIdleTime: getDuration(registry, "database.conn_max_idle_time"),
			ConnectTimeout:  getDuration(registry, "database.connect_timeout"),
			PingTimeout:     getDuration(registry, "database.ping_timeout"),
			ConnectRetries:  getInt(registry, "database.connect_retries"),
			RollbackTimeout: getDuration(registry, "database.rollback_timeout"),
			AutoMigrate:     getBool(registry, "database.auto_migrate"),
		},
		Runtime: RuntimeConfig{
			Environment:         getString(registry, "runtime.environment"),
			LogLevel:            getString(registry, "runtime.log_level"),
			LogJSON:             getBool(registry, "runtime.log_json"),
			LogSource:           getBool(registry, "runtime.log_source"),
			DefaultReadStrategy: getString(registry, "runtime.default_read_strategy"),
		},
		Monitoring: MonitoringConfig{
			Enabled: getBool(registry, "monitoring.enabled"),
			Path:    getString(registry, "monitoring.path"),
		},
	}
}

func getString(registry *definition.Registry, path string) string {
	if val, ok := registry.GetDefault(path).(string); ok {
		return val
	}
	return ""
}

func getInt(registry *definition.Registry, path string) int {
	if val, ok := registry.GetDefault(path).(int); ok {
		return val
	}
	return 0
}

func getBool(registry *definition.Registry, path string) bool {
	if val, ok := registry.GetDefault(path).(bool); ok {
		return val
	}
	return false
}

func getDuration(registry *definition.Registry, path string) time.Duration {
	if val, ok := registry.GetDefault(path).(time.Duration); ok {
		return val
	}
	return 0
}
