package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is read when CONFIG_PATH is not set.
const DefaultPath = "config.yaml"

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for fmpdb.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, client secrets) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	Logging    LoggingConfig    `yaml:"logging"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Binding    BindingConfig    `yaml:"binding"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatasourceConfig describes the one datasource the server talks to, plus
// the connection management settings shared by all adapters.
type DatasourceConfig struct {
	// Type is the registered adapter type: filemaker, postgres or mssql.
	Type string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"filemaker"`

	DSN      string `yaml:"dsn" env:"DATASOURCE_DSN"`
	Host     string `yaml:"host" env:"DATASOURCE_HOST"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT"`
	Database string `yaml:"database" env:"DATASOURCE_DATABASE"`
	User     string `yaml:"user" env:"DATASOURCE_USER"`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML

	// FileMaker ODBC
	ODBCDriver string `yaml:"odbc_driver" env:"DATASOURCE_ODBC_DRIVER"`
	DriverName string `yaml:"driver_name" env:"DATASOURCE_DRIVER_NAME"`

	// PostgreSQL and SQL Server
	SSLMode string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE"`
	Schema  string `yaml:"schema" env:"DATASOURCE_SCHEMA"`

	// SQL Server Azure AD service principal
	AuthMethod   string `yaml:"auth_method" env:"DATASOURCE_AUTH_METHOD"`
	TenantID     string `yaml:"tenant_id" env:"DATASOURCE_TENANT_ID"`
	ClientID     string `yaml:"client_id" env:"DATASOURCE_CLIENT_ID"`
	ClientSecret string `yaml:"-" env:"DATASOURCE_CLIENT_SECRET"` // Secret - not in YAML

	// ConnectionTTLMinutes is how long idle datasource connections are kept alive.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"DATASOURCE_CONNECTION_TTL_MINUTES" env-default:"5"`
	// MaxConnectionsPerUser limits concurrent datasource connections per user.
	MaxConnectionsPerUser int `yaml:"max_connections_per_user" env:"DATASOURCE_MAX_CONNECTIONS_PER_USER" env-default:"10"`
	// PoolMaxConns is the maximum number of connections per datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections per datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// BindingConfig controls how parameter values are spliced into SQL text.
type BindingConfig struct {
	// RejectSuspiciousValues screens string values with libinjection before
	// they are rendered as literals.
	RejectSuspiciousValues bool `yaml:"reject_suspicious_values" env:"BINDING_REJECT_SUSPICIOUS_VALUES"`
}

// MCPConfig selects how the MCP server is exposed.
type MCPConfig struct {
	// Transport is "stdio" or "http" (streamable HTTP).
	Transport string `yaml:"transport" env:"MCP_TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"MCP_BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"MCP_PORT" env-default:"3443"`
	BasePath  string `yaml:"base_path" env:"MCP_BASE_PATH" env-default:"/mcp"`

	// TLS configuration (optional - if both provided, the HTTP transport uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"MCP_TLS_CERT_PATH"`
	TLSKeyPath  string `yaml:"tls_key_path" env:"MCP_TLS_KEY_PATH"`
}

// Addr returns the listen address of the HTTP transport.
func (c *MCPConfig) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// Load reads configuration from CONFIG_PATH (default config.yaml) with
// environment variable overrides. Without a config file the environment
// alone is used. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.MCP.Transport = strings.ToLower(strings.TrimSpace(c.MCP.Transport))
	switch c.MCP.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid mcp.transport %q: must be stdio or http", c.MCP.Transport)
	}
	if !strings.HasPrefix(c.MCP.BasePath, "/") {
		c.MCP.BasePath = "/" + c.MCP.BasePath
	}

	if strings.TrimSpace(c.Datasource.Type) == "" {
		return fmt.Errorf("datasource.type is required")
	}

	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.MCP.TLSCertPath != ""
	keySet := c.MCP.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// actual readability is checked by tls.LoadX509KeyPair at startup
	if certSet {
		if _, err := os.Stat(c.MCP.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.MCP.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}
	return nil
}

// ToMap returns the adapter settings in the form the adapter factories'
// FromMap functions read. Empty values are left out so adapter defaults apply.
func (c *DatasourceConfig) ToMap() map[string]any {
	m := make(map[string]any)
	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	set("dsn", c.DSN)
	set("host", c.Host)
	set("database", c.Database)
	set("user", c.User)
	set("password", c.Password)
	set("odbc_driver", c.ODBCDriver)
	set("driver_name", c.DriverName)
	set("ssl_mode", c.SSLMode)
	set("schema", c.Schema)
	set("auth_method", c.AuthMethod)
	set("tenant_id", c.TenantID)
	set("client_id", c.ClientID)
	set("client_secret", c.ClientSecret)
	if c.Port != 0 {
		m["port"] = c.Port
	}
	return m
}
