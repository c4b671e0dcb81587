package definition

import (
	"reflect"
	"time"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	boolType     = reflect.TypeOf(false)
)

// CreateRegistry creates and populates the configuration registry. Defaults
// live here and nowhere else.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	registerServerFields(registry)
	registerDatabaseFields(registry)
	registerRuntimeFields(registry)
	registerMonitoringFields(registry)
	return registry
}

func registerServerFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "server.host",
		Default: "0.0.0.0",
		CLIFlag: "host",
		EnvVar:  "SERVER_HOST",
		Type:    stringType,
		Help:    "Host interface for the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:    "server.port",
		Default: 5001,
		CLIFlag: "port",
		EnvVar:  "SERVER_PORT",
		Type:    intType,
		Help:    "Port for the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:    "server.read_timeout",
		Default: 15 * time.Second,
		EnvVar:  "SERVER_READ_TIMEOUT",
		Type:    durationType,
		Help:    "HTTP read timeout",
	})
	registry.Register(&FieldDef{
		Path:    "server.write_timeout",
		Default: 30 * time.Second,
		EnvVar:  "SERVER_WRITE_TIMEOUT",
		Type:    durationType,
		Help:    "HTTP write timeout",
	})
	registry.Register(&FieldDef{
		Path:    "server.shutdown_timeout",
		Default: 10 * time.Second,
		EnvVar:  "SERVER_SHUTDOWN_TIMEOUT",
		Type:    durationType,
		Help:    "Grace period for in-flight requests on shutdown",
	})
}

func registerDatabaseFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "database.conn_string",
		Default: "",
		CLIFlag: "db-conn-string",
		EnvVar:  "DB_CONN_STRING",
		Type:    stringType,
		Help:    "PostgreSQL connection string; overrides the individual fields",
	})
	registry.Register(&FieldDef{
		Path:    "database.host",
		Default: "localhost",
		CLIFlag: "db-host",
		EnvVar:  "DB_HOST",
		Type:    stringType,
		Help:    "PostgreSQL host",
	})
	registry.Register(&FieldDef{
		Path:    "database.port",
		Default: "5432",
		CLIFlag: "db-port",
		EnvVar:  "DB_PORT",
		Type:    stringType,
		Help:    "PostgreSQL port",
	})
	registry.Register(&FieldDef{
		Path:    "database.user",
		Default: "postgres",
		CLIFlag: "db-user",
		EnvVar:  "DB_USER",
		Type:    stringType,
		Help:    "PostgreSQL user",
	})
	registry.Register(&FieldDef{
		Path:    "database.password",
		Default: "",
		CLIFlag: "db-password",
		EnvVar:  "DB_PASSWORD",
		Type:    stringType,
		Help:    "PostgreSQL password",
	})
	registry.Register(&FieldDef{
		Path:    "database.name",
		Default: "bookstore",
		CLIFlag: "db-name",
		EnvVar:  "DB_NAME",
		Type:    stringType,
		Help:    "PostgreSQL database name",
	})
	registry.Register(&FieldDef{
		Path:    "database.ssl_mode",
		Default: "disable",
		EnvVar:  "DB_SSL_MODE",
		Type:    stringType,
		Help:    "PostgreSQL sslmode",
	})
	registry.Register(&FieldDef{
		Path:    "database.max_open_conns",
		Default: 20,
		EnvVar:  "DB_MAX_OPEN_CONNS",
		Type:    intType,
		Help:    "Maximum pooled connections",
	})
	registry.Register(&FieldDef{
		Path:    "database.max_idle_conns",
		Default: 2,
		EnvVar:  "DB_MAX_IDLE_CONNS",
		Type:    intType,
		Help:    "Connections kept open while idle",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_lifetime",
		Default: 30 * time.Minute,
		EnvVar:  "DB_CONN_MAX_LIFETIME",
		Type:    durationType,
		Help:    "Maximum lifetime of a pooled connection",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_idle_time",
		Default: 5 * time.Minute,
		EnvVar:  "DB_CONN_MAX_IDLE_TIME",
		Type:    durationType,
		Help:    "Maximum idle time of a pooled connection",
	})
	registry.Register(&FieldDef{
		Path:    "database.connect_timeout",
		Default: 5 * time.Second,
		EnvVar:  "DB_CONNECT_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for establishing a connection",
	})
	registry.Register(&FieldDef{
		Path:    "database.ping_timeout",
		Default: 3 * time.Second,
		EnvVar:  "DB_PING_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for each startup ping",
	})
	registry.Register(&FieldDef{
		Path:    "database.connect_retries",
		Default: 3,
		EnvVar:  "DB_CONNECT_RETRIES",
		Type:    intType,
		Help:    "Startup ping retries before giving up",
	})
	registry.Register(&FieldDef{
		Path:    "database.rollback_timeout",
		Default: 5 * time.Second,
		EnvVar:  "DB_ROLLBACK_TIMEOUT",
		Type:    durationType,
		Help:    "Timeout for rollbacks issued after cancellation",
	})
	registry.Register(&FieldDef{
		Path:    "database.auto_migrate",
		Default: true,
		CLIFlag: "auto-migrate",
		EnvVar:  "DB_AUTO_MIGRATE",
		Type:    boolType,
		Help:    "Apply migrations before serving",
	})
}

func registerRuntimeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "runtime.environment",
		Default: "development",
		EnvVar:  "RUNTIME_ENVIRONMENT",
		Type:    stringType,
		Help:    "Deployment environment",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_level",
		Default: "info",
		CLIFlag: "log-level",
		EnvVar:  "RUNTIME_LOG_LEVEL",
		Type:    stringType,
		Help:    "Log level (debug, info, warn, error)",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_json",
		Default: false,
		CLIFlag: "log-json",
		EnvVar:  "RUNTIME_LOG_JSON",
		Type:    boolType,
		Help:    "Emit logs as JSON",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_source",
		Default: false,
		CLIFlag: "log-source",
		EnvVar:  "RUNTIME_LOG_SOURCE",
		Type:    boolType,
		Help:    "Include source locations in logs",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.default_read_strategy",
		Default: "declarative",
		EnvVar:  "RUNTIME_DEFAULT_READ_STRATEGY",
		Type:    stringType,
		Help:    "Read strategy used when a request does not name one",
	})
}

func registerMonitoringFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "monitoring.enabled",
		Default: false,
		CLIFlag: "monitoring",
		EnvVar:  "MONITORING_ENABLED",
		Type:    boolType,
		Help:    "Expose Prometheus metrics",
	})
	registry.Register(&FieldDef{
		Path:    "monitoring.path",
		Default: "/metrics",
		EnvVar:  "MONITORING_PATH",
		Type:    stringType,
		Help:    "Path of the metrics endpoint",
	})
}
