package postgres

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds PostgreSQL connection settings for the driver.
// Prefer providing a DSN via ConnString. When empty, a DSN will be
// synthesized from the individual fields.
type Config struct {
	ConnString string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string

	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	PingTimeout        time.Duration
	HealthCheckTimeout time.Duration
	// ConnectRetries bounds startup ping attempts. Zero pings once.
	ConnectRetries uint64
}

// DSN returns cfg.ConnString or a URL assembled from the individual fields.
func DSN(cfg *Config) string {
	if cfg == nil {
		return ""
	}
	if cfg.ConnString != "" {
		return cfg.ConnString
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%s", valueOr(cfg.Host, "localhost"), valueOr(cfg.Port, "5432")),
		Path:   "/" + valueOr(cfg.DBName, "postgres"),
	}
	user := valueOr(cfg.User, "postgres")
	if cfg.Password != "" {
		u.User = url.UserPassword(user, cfg.Password)
	} else {
		u.User = url.User(user)
	}
	q := url.Values{}
	q.Set("sslmode", valueOr(cfg.SSLMode, "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
