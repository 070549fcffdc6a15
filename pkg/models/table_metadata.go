package models

// ForeignKeyRef is the (table, column) a foreign-key column points at.
type ForeignKeyRef struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// TableMetadata describes one table as discovered from a datasource catalog.
// It is built once by an introspector and treated as read-only afterwards,
// so a cached instance can be shared between goroutines.
type TableMetadata struct {
	Name    string            `json:"name" yaml:"name"`
	RawName string            `json:"raw_name" yaml:"raw_name"` // quoted for the owning dialect
	Columns []*ColumnMetadata `json:"columns" yaml:"columns"`

	// PrimaryKey holds one name for a simple key, or the ordered names of a composite key.
	PrimaryKey []string `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`

	// SequenceName is nil when the table has no auto-increment sequence.
	// The empty string means the last inserted key must be looked up with a MAX() scan.
	SequenceName *string `json:"sequence_name,omitempty" yaml:"sequence_name,omitempty"`

	ForeignKeys map[string]ForeignKeyRef `json:"foreign_keys,omitempty" yaml:"foreign_keys,omitempty"`

	columnIndex map[string]int
}

// NewTableMetadata creates an empty table description.
func NewTableMetadata(name, rawName string) *TableMetadata {
	return &TableMetadata{
		Name:        name,
		RawName:     rawName,
		ForeignKeys: make(map[string]ForeignKeyRef),
		columnIndex: make(map[string]int),
	}
}

// AddColumn appends a column, replacing any earlier column of the same name.
// Only introspectors call this while building the table.
func (t *TableMetadata) AddColumn(c *ColumnMetadata) {
	if t.columnIndex == nil {
		t.reindex()
	}
	if i, ok := t.columnIndex[c.Name]; ok {
		t.Columns[i] = c
		return
	}
	t.columnIndex[c.Name] = len(t.Columns)
	t.Columns = append(t.Columns, c)
}

func (t *TableMetadata) reindex() {
	t.columnIndex = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.columnIndex[c.Name] = i
	}
}

// Column returns the named column, or nil if the table does not have it.
func (t *TableMetadata) Column(name string) *ColumnMetadata {
	if t.columnIndex != nil && len(t.columnIndex) == len(t.Columns) {
		if i, ok := t.columnIndex[name]; ok {
			return t.Columns[i]
		}
		return nil
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the column names in catalog order.
func (t *TableMetadata) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// HasPrimaryKey reports whether any primary-key column was recognised.
func (t *TableMetadata) HasPrimaryKey() bool {
	return len(t.PrimaryKey) > 0
}

// IsCompositeKey reports whether the primary key spans more than one column.
func (t *TableMetadata) IsCompositeKey() bool {
	return len(t.PrimaryKey) > 1
}

// SingleKey returns the primary key column when the key is not composite.
func (t *TableMetadata) SingleKey() (*ColumnMetadata, bool) {
	if len(t.PrimaryKey) != 1 {
		return nil, false
	}
	c := t.Column(t.PrimaryKey[0])
	return c, c != nil
}

// Relation is a foreign key after its referenced table has been matched
// against the catalog.
type Relation struct {
	Column           string `json:"column" yaml:"column"`
	ReferencedTable  string `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumn string `json:"referenced_column" yaml:"referenced_column"`
	Resolved         bool   `json:"resolved" yaml:"resolved"`
}
