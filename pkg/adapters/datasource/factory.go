package datasource

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
)

// DatasourceAdapterFactory creates adapters from the registry.
type DatasourceAdapterFactory interface {
	// NewConnectionTester creates a connection tester for the given datasource type.
	NewConnectionTester(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (ConnectionTester, error)

	// NewSchemaIntrospector creates a catalog reader for the given datasource type.
	NewSchemaIntrospector(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (SchemaIntrospector, error)

	// NewQueryExecutor creates a query executor for the given datasource type.
	NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (QueryExecutor, error)

	// Dialect returns the SQL dialect of the given datasource type.
	Dialect(dsType string) (dialect.Dialect, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []DatasourceAdapterInfo
}

type registryFactory struct {
	connMgr *ConnectionManager
}

// NewDatasourceAdapterFactory returns a factory that uses the global registry.
func NewDatasourceAdapterFactory(connMgr *ConnectionManager) DatasourceAdapterFactory {
	return &registryFactory{
		connMgr: connMgr,
	}
}

func (f *registryFactory) NewConnectionTester(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (ConnectionTester, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return factory(ctx, config, f.connMgr, datasourceID, userID)
}

func (f *registryFactory) NewSchemaIntrospector(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (SchemaIntrospector, error) {
	factory := GetSchemaIntrospectorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("schema introspection not supported for type: %s", dsType)
	}
	return factory(ctx, config, f.connMgr, datasourceID, userID)
}

func (f *registryFactory) NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, datasourceID uuid.UUID, userID string) (QueryExecutor, error) {
	factory := GetQueryExecutorFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("query execution not supported for type: %s", dsType)
	}
	return factory(ctx, config, f.connMgr, datasourceID, userID)
}

func (f *registryFactory) Dialect(dsType string) (dialect.Dialect, error) {
	d := GetDialect(dsType)
	if d == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	return d, nil
}

func (f *registryFactory) ListTypes() []DatasourceAdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements DatasourceAdapterFactory at compile time.
var _ DatasourceAdapterFactory = (*registryFactory)(nil)
