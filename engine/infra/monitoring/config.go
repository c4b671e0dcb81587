package monitoring

import (
	"errors"
	"fmt"
	"strings"
)

// Config selects whether metrics are exported and where /metrics is mounted.
type Config struct {
	Enabled bool
	Path    string
}

func DefaultConfig() *Config {
	return &Config{Path: "/metrics"}
}

// Validate rejects paths that would collide with the API or carry a query.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return errors.New("monitoring path cannot be empty")
	case !strings.HasPrefix(c.Path, "/"):
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	case strings.HasPrefix(c.Path, "/api/"):
		return errors.New("monitoring path cannot be under /api/")
	case strings.ContainsRune(c.Path, '?'):
		return errors.New("monitoring path cannot contain query parameters")
	}
	return nil
}
