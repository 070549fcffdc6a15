package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
)

// DatasourceAdapterInfo describes a registered adapter.
type DatasourceAdapterInfo struct {
	Type        string `json:"type"`         // "filemaker", "postgres", "mssql"
	DisplayName string `json:"display_name"` // "FileMaker ODBC"
	Description string `json:"description"`
}

// ConnectionTesterFactory creates a connection tester from adapter config.
type ConnectionTesterFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, datasourceID uuid.UUID, userID string) (ConnectionTester, error)

// SchemaIntrospectorFactory creates a catalog reader from adapter config.
type SchemaIntrospectorFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, datasourceID uuid.UUID, userID string) (SchemaIntrospector, error)

// QueryExecutorFactory creates a statement executor from adapter config.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, connMgr *ConnectionManager, datasourceID uuid.UUID, userID string) (QueryExecutor, error)

// DatasourceAdapterRegistration contains info, the dialect and factories for an adapter.
// Factories accept the connection manager and identity parameters for connection pooling.
type DatasourceAdapterRegistration struct {
	Info                      DatasourceAdapterInfo
	Dialect                   func() dialect.Dialect
	Factory                   ConnectionTesterFactory
	SchemaIntrospectorFactory SchemaIntrospectorFactory
	QueryExecutorFactory      QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DatasourceAdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DatasourceAdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters, sorted by type.
func RegisteredAdapters() []DatasourceAdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]DatasourceAdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

func lookup(dsType string) (DatasourceAdapterRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[dsType]
	return reg, ok
}

// GetFactory returns the connection tester factory for a datasource type.
// Returns nil if type is not registered.
func GetFactory(dsType string) ConnectionTesterFactory {
	if reg, ok := lookup(dsType); ok {
		return reg.Factory
	}
	return nil
}

// GetSchemaIntrospectorFactory returns the introspector factory for a datasource type.
// Returns nil if type is not registered.
func GetSchemaIntrospectorFactory(dsType string) SchemaIntrospectorFactory {
	if reg, ok := lookup(dsType); ok {
		return reg.SchemaIntrospectorFactory
	}
	return nil
}

// GetQueryExecutorFactory returns the query executor factory for a datasource type.
// Returns nil if type is not registered.
func GetQueryExecutorFactory(dsType string) QueryExecutorFactory {
	if reg, ok := lookup(dsType); ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// GetDialect returns the dialect of a datasource type.
// Returns nil if type is not registered.
func GetDialect(dsType string) dialect.Dialect {
	if reg, ok := lookup(dsType); ok && reg.Dialect != nil {
		return reg.Dialect()
	}
	return nil
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	_, ok := lookup(dsType)
	return ok
}
