// Package schema caches table metadata read from a datasource catalog and
// resolves the foreign keys it describes against the table list.
package schema

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/models"
)

const tableNamesKey = "\x00names"

// Source reads the catalog. datasource.SchemaIntrospector satisfies it.
type Source interface {
	FindTableNames(ctx context.Context) ([]string, error)
	LoadTable(ctx context.Context, name string) (*models.TableMetadata, error)
}

// Cache holds table metadata once it has been built. Concurrent first loads
// of the same table share one catalog query. Cached tables are read-only and
// may be used from any goroutine.
type Cache struct {
	source Source
	logger *zap.Logger

	mu     sync.RWMutex
	tables map[string]*models.TableMetadata
	names  []string
	// generation advances on every refresh; a load started before a refresh
	// does not store its result.
	generation uint64
	group      singleflight.Group
}

// NewCache creates an empty cache over source.
func NewCache(source Source, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		source: source,
		logger: logger.Named("schema-cache"),
		tables: make(map[string]*models.TableMetadata),
	}
}

func (c *Cache) cached(name string) (*models.TableMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Table returns the metadata of name, loading it on first use. A table the
// catalog does not know is reported as a SchemaError matching
// apperrors.ErrNotFound and is not cached. A shared load is not cancelled
// when the caller that started it goes away.
func (c *Cache) Table(ctx context.Context, name string) (*models.TableMetadata, error) {
	if t, ok := c.cached(name); ok {
		return t, nil
	}

	v, err, shared := c.group.Do(name, func() (any, error) {
		if t, ok := c.cached(name); ok {
			return t, nil
		}
		generation := c.currentGeneration()
		t, err := c.source.LoadTable(context.WithoutCancel(ctx), name)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, apperrors.NewSchemaError(name, apperrors.ErrNotFound)
		}

		c.mu.Lock()
		stale := c.generation != generation
		if !stale {
			c.tables[name] = t
		}
		c.mu.Unlock()
		if stale {
			c.logger.Debug("Discarded table load overtaken by refresh", zap.String("table", name))
			return t, nil
		}

		c.logger.Debug("Cached table metadata",
			zap.String("table", name),
			zap.Int("columns", len(t.Columns)))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Shared table load", zap.String("table", name))
	}
	return v.(*models.TableMetadata), nil
}

// TableNames returns the catalog's table names, loading them on first use.
func (c *Cache) TableNames(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	names := c.names
	c.mu.RUnlock()
	if names != nil {
		return slices.Clone(names), nil
	}

	v, err, _ := c.group.Do(tableNamesKey, func() (any, error) {
		c.mu.RLock()
		names := c.names
		c.mu.RUnlock()
		if names != nil {
			return names, nil
		}

		generation := c.currentGeneration()
		names, err := c.source.FindTableNames(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if names == nil {
			names = []string{}
		}

		c.mu.Lock()
		if c.generation == generation {
			c.names = names
		}
		c.mu.Unlock()
		return names, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]string)), nil
}

// Refresh drops the cached metadata of name.
func (c *Cache) Refresh(name string) {
	c.mu.Lock()
	delete(c.tables, name)
	c.generation++
	c.mu.Unlock()
	c.group.Forget(name)
}

// RefreshAll drops every cached table and the table list.
func (c *Cache) RefreshAll() {
	c.mu.Lock()
	c.tables = make(map[string]*models.TableMetadata)
	c.names = nil
	c.generation++
	c.mu.Unlock()
	c.group.Forget(tableNamesKey)
}

// Relations resolves the foreign keys of tableName, in column order.
//
// The referenced table recorded by the introspector is matched against the
// table list exactly, then ignoring case, then by its plural and singular
// forms. When the match has a single-column primary key that column becomes
// the referenced column. Unmatched keys are returned with Resolved unset.
func (c *Cache) Relations(ctx context.Context, tableName string) ([]models.Relation, error) {
	table, err := c.Table(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(table.ForeignKeys) == 0 {
		return nil, nil
	}
	names, err := c.TableNames(ctx)
	if err != nil {
		return nil, err
	}

	var relations []models.Relation
	for _, column := range table.Columns {
		ref, ok := table.ForeignKeys[column.Name]
		if !ok {
			continue
		}
		relation := models.Relation{
			Column:           column.Name,
			ReferencedTable:  ref.Table,
			ReferencedColumn: ref.Column,
		}
		if match, found := matchTable(names, ref.Table); found {
			relation.ReferencedTable = match
			relation.Resolved = true

			referenced, err := c.Table(ctx, match)
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				relation.Resolved = false
			case err != nil:
				return nil, err
			default:
				if key, ok := referenced.SingleKey(); ok {
					relation.ReferencedColumn = key.Name
				}
			}
		}
		relations = append(relations, relation)
	}
	return relations, nil
}

func matchTable(names []string, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	if slices.Contains(names, token) {
		return token, true
	}
	candidates := []string{token, inflection.Plural(token), inflection.Singular(token)}
	for _, candidate := range candidates {
		for _, name := range names {
			if strings.EqualFold(name, candidate) {
				return name, true
			}
		}
	}
	return "", false
}
