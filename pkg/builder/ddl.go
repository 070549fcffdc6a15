package builder

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
)

// ColumnDefinition is one column of a CREATE TABLE. Type is a logical kind
// (see dialect.Logical*) or a physical type, optionally with modifiers.
type ColumnDefinition struct {
	Name string
	Type string
}

func (b *Builder) ddl(op dialect.DDLOp) error {
	if b.dialect.SupportsDDL(op) {
		return nil
	}
	return dialect.Unsupported(b.dialect, op)
}

func (b *Builder) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = b.dialect.QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}

// CreateTable builds a CREATE TABLE with column kinds mapped to physical
// types. options is appended verbatim after the column list.
func (b *Builder) CreateTable(table string, columns []ColumnDefinition, options string) (string, error) {
	if err := b.ddl(dialect.DDLCreateTable); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("create table %s: no columns", table)
	}
	lines := make([]string, len(columns))
	for i, column := range columns {
		lines[i] = "\t" + b.dialect.QuoteIdentifier(column.Name) + " " + b.dialect.PhysicalType(column.Type)
	}
	sql := "CREATE TABLE " + b.dialect.QuoteIdentifier(table) + " (\n" + strings.Join(lines, ",\n") + "\n)"
	if options != "" {
		sql += " " + options
	}
	return sql, nil
}

// TruncateTable empties a table. Dialects without TRUNCATE get a DELETE.
func (b *Builder) TruncateTable(table string) string {
	quoted := b.dialect.QuoteIdentifier(table)
	if b.dialect.SupportsDDL(dialect.DDLTruncateTable) {
		return "TRUNCATE TABLE " + quoted
	}
	return "DELETE FROM " + quoted
}

func (b *Builder) RenameTable(table, newName string) (string, error) {
	if err := b.ddl(dialect.DDLRenameTable); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) + " RENAME TO " + b.dialect.QuoteIdentifier(newName), nil
}

func (b *Builder) DropColumn(table, column string) (string, error) {
	if err := b.ddl(dialect.DDLDropColumn); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) + " DROP COLUMN " + b.dialect.QuoteIdentifier(column), nil
}

func (b *Builder) RenameColumn(table, name, newName string) (string, error) {
	if err := b.ddl(dialect.DDLRenameColumn); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) +
		" RENAME COLUMN " + b.dialect.QuoteIdentifier(name) + " TO " + b.dialect.QuoteIdentifier(newName), nil
}

// AlterColumn changes the type of a column. columnType is a logical kind or
// physical type.
func (b *Builder) AlterColumn(table, column, columnType string) (string, error) {
	if err := b.ddl(dialect.DDLAlterColumn); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) +
		" ALTER COLUMN " + b.dialect.QuoteIdentifier(column) + " TYPE " + b.dialect.PhysicalType(columnType), nil
}

// AddForeignKey adds a named foreign key constraint. onDelete and onUpdate
// are referential actions such as CASCADE; empty means the database default.
func (b *Builder) AddForeignKey(name, table string, columns []string, refTable string, refColumns []string, onDelete, onUpdate string) (string, error) {
	if err := b.ddl(dialect.DDLAddForeignKey); err != nil {
		return "", err
	}
	sql := "ALTER TABLE " + b.dialect.QuoteIdentifier(table) +
		" ADD CONSTRAINT " + b.dialect.QuoteIdentifier(name) +
		" FOREIGN KEY (" + b.quoteList(columns) + ")" +
		" REFERENCES " + b.dialect.QuoteIdentifier(refTable) + " (" + b.quoteList(refColumns) + ")"
	if onDelete != "" {
		sql += " ON DELETE " + onDelete
	}
	if onUpdate != "" {
		sql += " ON UPDATE " + onUpdate
	}
	return sql, nil
}

func (b *Builder) DropForeignKey(name, table string) (string, error) {
	if err := b.ddl(dialect.DDLDropForeignKey); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) + " DROP CONSTRAINT " + b.dialect.QuoteIdentifier(name), nil
}

func (b *Builder) AddPrimaryKey(name, table string, columns []string) (string, error) {
	if err := b.ddl(dialect.DDLAddPrimaryKey); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) +
		" ADD CONSTRAINT " + b.dialect.QuoteIdentifier(name) + " PRIMARY KEY (" + b.quoteList(columns) + ")", nil
}

func (b *Builder) DropPrimaryKey(name, table string) (string, error) {
	if err := b.ddl(dialect.DDLDropPrimaryKey); err != nil {
		return "", err
	}
	return "ALTER TABLE " + b.dialect.QuoteIdentifier(table) + " DROP CONSTRAINT " + b.dialect.QuoteIdentifier(name), nil
}

func (b *Builder) DropIndex(name, table string) (string, error) {
	if err := b.ddl(dialect.DDLDropIndex); err != nil {
		return "", err
	}
	return "DROP INDEX " + b.dialect.QuoteIdentifier(name), nil
}
