package filemaker

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/dialect"
)

func init() {
	datasource.Register(datasource.DatasourceAdapterRegistration{
		Info: datasource.DatasourceAdapterInfo{
			Type:        DialectName,
			DisplayName: "FileMaker ODBC",
			Description: "Connect to FileMaker Server through its ODBC driver",
		},
		Dialect: func() dialect.Dialect { return NewDialect() },
		Factory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (datasource.ConnectionTester, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
		},
		SchemaIntrospectorFactory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (datasource.SchemaIntrospector, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			// Pass nil logger - a no-op logger will be used internally
			return NewSchemaIntrospectorFromConfig(ctx, cfg, connMgr, datasourceID, userID, nil)
		},
		QueryExecutorFactory: func(ctx context.Context, config map[string]any, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string) (datasource.QueryExecutor, error) {
			cfg, err := FromMap(config)
			if err != nil {
				return nil, err
			}
			return NewQueryExecutor(ctx, cfg, connMgr, datasourceID, userID, nil)
		},
	})
}
