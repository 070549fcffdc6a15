package filemaker

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/config"
)

const (
	DefaultPort       = 2399
	DefaultODBCDriver = "FileMaker ODBC"
	DefaultDriverName = "odbc"
)

// Config contains FileMaker ODBC connection options.
// Either DSN or Host and Database must be set.
type Config struct {
	// DSN is a complete ODBC connection string or data source name.
	// When set, the discrete fields below are ignored.
	DSN string

	Host     string
	Port     int
	Database string
	User     string
	Password string

	// ODBCDriver is the installed ODBC driver name written into Driver={...}.
	ODBCDriver string

	// DriverName is the database/sql driver registered by the binary.
	DriverName string
}

// FromMap creates a Config from a generic config map.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:       DefaultPort,
		ODBCDriver: DefaultODBCDriver,
		DriverName: DefaultDriverName,
	}

	cfg.DSN = stringValue(m, "dsn")
	cfg.Host = stringValue(m, "host")
	cfg.Database = stringValue(m, "database", "name")
	cfg.User = stringValue(m, "user", "username")
	cfg.Password = stringValue(m, "password")

	if v, ok := m["port"]; ok && v != nil {
		port, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: port: %v", apperrors.ErrInvalidConfig, err)
		}
		if port != 0 {
			cfg.Port = port
		}
	}
	if v := stringValue(m, "odbc_driver"); v != "" {
		cfg.ODBCDriver = v
	}
	if v := stringValue(m, "driver_name"); v != "" {
		cfg.DriverName = v
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

// Validate checks the config has enough to build a connection string.
func (c *Config) Validate() error {
	if c.DriverName == "" {
		return fmt.Errorf("%w: driver_name is required", apperrors.ErrInvalidConfig)
	}
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", apperrors.ErrInvalidConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database is required", apperrors.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", apperrors.ErrInvalidConfig, c.Port)
	}
	return nil
}

// ConnectionString returns the ODBC connection string passed to the driver.
func (c *Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	attrs := []string{
		"Driver=" + braced(c.ODBCDriver),
		"Server=" + odbcValue(config.ResolveHostForDocker(c.Host)),
		fmt.Sprintf("Port=%d", c.Port),
		"Database=" + odbcValue(c.Database),
	}
	if c.User != "" {
		attrs = append(attrs, "UID="+odbcValue(c.User))
	}
	if c.Password != "" {
		attrs = append(attrs, "PWD="+odbcValue(c.Password))
	}
	return strings.Join(attrs, ";")
}

// odbcValue braces values that would otherwise end the attribute.
func odbcValue(v string) string {
	if strings.ContainsAny(v, ";{}= ") {
		return braced(v)
	}
	return v
}

func braced(v string) string {
	return "{" + strings.ReplaceAll(v, "}", "}}") + "}"
}
