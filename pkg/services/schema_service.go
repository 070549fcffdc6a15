package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/models"
	"github.com/ekaya-inc/fmpdb/pkg/schema"
)

// TableDescription is a table's metadata together with its resolved
// foreign keys.
type TableDescription struct {
	Table     *models.TableMetadata `json:"table" yaml:"table"`
	Relations []models.Relation     `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// SchemaService exposes the cached catalog.
type SchemaService interface {
	ListTables(ctx context.Context) ([]string, error)
	DescribeTable(ctx context.Context, name string) (*TableDescription, error)
	// Refresh drops cached metadata for name, or for everything when name is empty.
	Refresh(name string)
}

type schemaService struct {
	cache  *schema.Cache
	logger *zap.Logger
}

func NewSchemaService(cache *schema.Cache, logger *zap.Logger) SchemaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &schemaService{cache: cache, logger: logger.Named("schema")}
}

func (s *schemaService) ListTables(ctx context.Context) ([]string, error) {
	return s.cache.TableNames(ctx)
}

func (s *schemaService) DescribeTable(ctx context.Context, name string) (*TableDescription, error) {
	table, err := s.cache.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	relations, err := s.cache.Relations(ctx, name)
	if err != nil {
		return nil, err
	}
	return &TableDescription{Table: table, Relations: relations}, nil
}

func (s *schemaService) Refresh(name string) {
	if name == "" {
		s.cache.RefreshAll()
		s.logger.Info("Dropped all cached table metadata")
		return
	}
	s.cache.Refresh(name)
	s.logger.Info("Dropped cached table metadata", zap.String("table", name))
}
