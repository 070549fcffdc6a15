//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
)

// Adapter provides PostgreSQL connectivity.
type Adapter struct {
	config    *Config
	pool      *pgxpool.Pool
	ownedPool bool // true if we created the pool (for TestConnection case)
}

// NewAdapter creates a PostgreSQL adapter using the connection manager.
// If connMgr is nil, creates an unmanaged pool (for tests or TestConnection).
func NewAdapter(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	connStr := cfg.ConnectionString()

	if connMgr == nil {
		pool, err := pgxpool.New(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return &Adapter{config: cfg, pool: pool, ownedPool: true}, nil
	}

	connector, err := connMgr.GetOrCreateConnection(ctx, datasourceID, userID, func(ctx context.Context) (datasource.PoolConnector, error) {
		return datasource.CreatePostgresPool(ctx, connStr, connMgr.Config())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pooled connection: %w", err)
	}

	pool, err := datasource.GetPostgresPool(connector)
	if err != nil {
		return nil, fmt.Errorf("failed to extract postgres pool: %w", err)
	}
	return &Adapter{config: cfg, pool: pool}, nil
}

// NewAdapterFromPool wraps an existing pool. The caller keeps ownership.
func NewAdapterFromPool(pool *pgxpool.Pool, cfg *Config) *Adapter {
	return &Adapter{config: cfg, pool: pool}
}

// TestConnection verifies the server is reachable and that the connection
// landed in the configured database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if err := a.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	expected := a.config.Database
	if expected != "" && !strings.EqualFold(currentDB, expected) {
		return fmt.Errorf("connected to wrong database: expected %q but connected to %q", expected, currentDB)
	}
	return nil
}

// Close releases the adapter (but NOT the pool if managed).
func (a *Adapter) Close() error {
	if a.ownedPool && a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Pool returns the underlying pool for the executor and introspector.
func (a *Adapter) Pool() *pgxpool.Pool {
	return a.pool
}

var _ datasource.ConnectionTester = (*Adapter)(nil)
