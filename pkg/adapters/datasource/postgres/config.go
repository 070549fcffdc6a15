//go:build postgres || all_adapters

package postgres

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/config"
)

const (
	DefaultPort    = 5432
	DefaultSSLMode = "require"
	DefaultSchema  = "public"
)

// Config contains PostgreSQL connection options.
type Config struct {
	// DSN is a complete connection URL or keyword/value string. When set,
	// Host, Port, User, Password, Database and SSLMode are ignored.
	DSN string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"

	// Schema is the catalog schema tables are read from.
	Schema string
}

// FromMap creates a Config from a generic config map.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort,
		SSLMode: DefaultSSLMode,
		Schema:  DefaultSchema,
	}

	cfg.DSN = stringValue(m, "dsn")
	cfg.Host = stringValue(m, "host")
	cfg.User = stringValue(m, "user", "username")
	cfg.Password = stringValue(m, "password")
	cfg.Database = stringValue(m, "database", "name")

	if v, ok := m["port"]; ok && v != nil {
		port, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: port: %v", apperrors.ErrInvalidConfig, err)
		}
		if port != 0 {
			cfg.Port = port
		}
	}
	if v := stringValue(m, "ssl_mode"); v != "" {
		cfg.SSLMode = v
	}
	if v := stringValue(m, "schema"); v != "" {
		cfg.Schema = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func stringValue(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// Validate checks the config has enough to connect.
func (c *Config) Validate() error {
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", apperrors.ErrInvalidConfig)
	}
	if c.User == "" {
		return fmt.Errorf("%w: user is required", apperrors.ErrInvalidConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database is required", apperrors.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", apperrors.ErrInvalidConfig, c.Port)
	}
	return nil
}

// ConnectionString builds a postgresql:// URL. User, password and database
// are escaped so passwords containing '@', '/' or '#' survive parsing.
func (c *Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		config.ResolveHostForDocker(c.Host),
		c.Port,
		url.QueryEscape(c.Database),
		url.QueryEscape(sslMode),
	)
}
