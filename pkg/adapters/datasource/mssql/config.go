//go:build mssql || all_adapters

package mssql

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/config"
)

const (
	DefaultPort              = 1433
	DefaultSchema            = "dbo"
	DefaultConnectionTimeout = 30

	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server connection options.
type Config struct {
	Host     string
	Port     int
	Database string
	Schema   string

	// AuthMethod is AuthSQL or AuthServicePrincipal. FromMap detects it
	// from the credentials when it is not given.
	AuthMethod string

	Username string
	Password string

	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// FromMap creates a Config from a generic config map.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Port:              DefaultPort,
		Schema:            DefaultSchema,
		Encrypt:           true,
		ConnectionTimeout: DefaultConnectionTimeout,
	}

	cfg.Host = stringValue(m, "host")
	cfg.Database = stringValue(m, "database", "name")
	cfg.Username = stringValue(m, "username", "user")
	cfg.Password = stringValue(m, "password")
	cfg.TenantID = stringValue(m, "tenant_id")
	cfg.ClientID = stringValue(m, "client_id")
	cfg.ClientSecret = stringValue(m, "client_secret")
	if v := stringValue(m, "schema"); v != "" {
		cfg.Schema = v
	}

	var err error
	if cfg.Port, err = intValue(m, "port", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.ConnectionTimeout, err = intValue(m, "connection_timeout", cfg.ConnectionTimeout); err != nil {
		return nil, err
	}

	if v, ok := m["encrypt"]; ok && v != nil {
		// "strict" is the go-mssqldb spelling of TDS 8 encryption
		s := strings.ToLower(cast.ToString(v))
		cfg.Encrypt = s == "true" || s == "strict" || s == "1"
	}
	if v, ok := m["trust_server_certificate"]; ok && v != nil {
		cfg.TrustServerCertificate = cast.ToBool(v)
	}

	cfg.AuthMethod = stringValue(m, "auth_method")
	if cfg.AuthMethod == "" {
		switch {
		case cfg.ClientID != "":
			cfg.AuthMethod = AuthServicePrincipal
		case cfg.Username != "":
			cfg.AuthMethod = AuthSQL
		default:
			return nil, fmt.Errorf("%w: could not detect auth method; no credentials provided", apperrors.ErrInvalidConfig)
		}
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

func intValue(m map[string]any, key string, def int) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", apperrors.ErrInvalidConfig, key, err)
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}

// Validate checks the config has everything the selected auth method needs.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", apperrors.ErrInvalidConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database is required", apperrors.ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", apperrors.ErrInvalidConfig, c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return fmt.Errorf("%w: username is required for SQL authentication", apperrors.ErrInvalidConfig)
		}
	case AuthServicePrincipal:
		if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("%w: tenant_id, client_id and client_secret are required for service principal", apperrors.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: invalid auth method: %s (must be sql or service_principal)", apperrors.ErrInvalidConfig, c.AuthMethod)
	}
	return nil
}

// DriverName returns the database/sql driver for the auth method. Azure AD
// logins go through the azuresql driver registered by go-mssqldb/azuread.
func (c *Config) DriverName() string {
	if c.AuthMethod == AuthServicePrincipal {
		return "azuresql"
	}
	return "sqlserver"
}

// ConnectionString builds a sqlserver:// URL for the auth method.
func (c *Config) ConnectionString() string {
	query := url.Values{}
	query.Add("database", c.Database)
	query.Add("encrypt", strconv.FormatBool(c.Encrypt))
	if c.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if c.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(c.ConnectionTimeout))
	}

	host := fmt.Sprintf("%s:%d", config.ResolveHostForDocker(c.Host), c.Port)
	u := url.URL{Scheme: "sqlserver", Host: host}

	switch c.AuthMethod {
	case AuthServicePrincipal:
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", c.ClientID+"@"+c.TenantID)
		query.Add("password", c.ClientSecret)
	default:
		u.User = url.UserPassword(c.Username, c.Password)
	}
	u.RawQuery = query.Encode()
	return u.String()
}
