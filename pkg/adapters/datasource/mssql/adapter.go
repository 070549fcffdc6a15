//go:build mssql || all_adapters

package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/microsoft/go-mssqldb"         // sqlserver driver
	_ "github.com/microsoft/go-mssqldb/azuread" // azuresql driver

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
)

// Adapter provides SQL Server connectivity through database/sql.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we opened the DB ourselves (no connection manager)
}

// NewAdapter connects to SQL Server with SQL or Azure AD service principal
// authentication. With a connection manager the pool is shared per
// (datasource, user).
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if connMgr == nil {
		db, err := sql.Open(cfg.DriverName(), cfg.ConnectionString())
		if err != nil {
			return nil, fmt.Errorf("open %s connection: %w", cfg.AuthMethod, err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, datasourceID, userID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.CreateSQLPool(ctx, cfg.DriverName(), cfg.ConnectionString(), DialectName, connMgr.Config())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, err
	}
	return &Adapter{config: cfg, db: db}, nil
}

// NewAdapterFromDB wraps an already open handle. The caller keeps ownership.
func NewAdapterFromDB(db *sql.DB, cfg *Config) *Adapter {
	return &Adapter{config: cfg, db: db}
}

// TestConnection verifies the server is reachable and that the login landed
// in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	if a.config != nil && a.config.Database != "" && !strings.EqualFold(currentDB, a.config.Database) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", a.config.Database, currentDB)
	}
	return nil
}

// Close releases the adapter (but NOT the DB if managed).
func (a *Adapter) Close() error {
	if a.ownedDB && a.db != nil {
		return a.db.Close()
	}
	return nil
}

// DB returns the underlying *sql.DB for the introspector and executor.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

var _ datasource.ConnectionTester = (*Adapter)(nil)
