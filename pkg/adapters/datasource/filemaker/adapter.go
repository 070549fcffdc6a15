package filemaker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
)

// Adapter provides FileMaker connectivity through database/sql and the
// ODBC driver registered under Config.DriverName.
type Adapter struct {
	config  *Config
	db      *sql.DB
	ownedDB bool // true if we opened the DB ourselves (no connection manager)
}

// NewAdapter connects to FileMaker. With a connection manager the pool is
// shared per (datasource, user) and survives Close; without one the adapter
// owns its connection.
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if connMgr == nil {
		db, err := sql.Open(cfg.DriverName, cfg.ConnectionString())
		if err != nil {
			return nil, fmt.Errorf("open odbc connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("connection test failed: %w", err)
		}
		return &Adapter{config: cfg, db: db, ownedDB: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, datasourceID, userID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.CreateSQLPool(ctx, cfg.DriverName, cfg.ConnectionString(), DialectName, connMgr.Config())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	db, err := datasource.GetSQLDB(connector)
	if err != nil {
		return nil, err
	}

	return &Adapter{config: cfg, db: db}, nil
}

// NewAdapterFromDB wraps an already open handle. The caller keeps ownership.
func NewAdapterFromDB(db *sql.DB) *Adapter {
	return &Adapter{config: &Config{DriverName: DefaultDriverName}, db: db}
}

// TestConnection verifies the server is reachable and the catalog readable.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var count int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM FileMaker_Tables").Scan(&count); err != nil {
		return fmt.Errorf("test query failed: %w", err)
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

// DB returns the underlying *sql.DB for use by the introspector and executor.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

var _ datasource.ConnectionTester = (*Adapter)(nil)
