package models

// KeyRole classifies a column's part in table keys.
type KeyRole int

const (
	KeyRolePlain KeyRole = iota
	KeyRolePrimaryKey
	KeyRoleForeignKey
)

func (r KeyRole) String() string {
	switch r {
	case KeyRolePrimaryKey:
		return "primary_key"
	case KeyRoleForeignKey:
		return "foreign_key"
	default:
		return "plain"
	}
}

// MarshalText lets the role render as a word in JSON and YAML output.
func (r KeyRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ColumnMetadata describes one column of a TableMetadata. Immutable once the
// owning table has been built.
type ColumnMetadata struct {
	Name    string `json:"name" yaml:"name"`
	RawName string `json:"raw_name" yaml:"raw_name"`
	// DBType is the physical type reported by the catalog, lower-cased.
	DBType    string  `json:"db_type" yaml:"db_type"`
	AllowNull bool    `json:"allow_null" yaml:"allow_null"`
	Role      KeyRole `json:"role" yaml:"role"`
	// ReferencedTable is set for foreign keys and for primary keys that also
	// reference a table.
	ReferencedTable string `json:"referenced_table,omitempty" yaml:"referenced_table,omitempty"`
	// IsCalculated columns are computed by the datasource and never written.
	IsCalculated  bool   `json:"is_calculated" yaml:"is_calculated"`
	AutoIncrement bool   `json:"auto_increment" yaml:"auto_increment"`
	DefaultValue  string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
}

func (c *ColumnMetadata) IsPrimaryKey() bool { return c.Role == KeyRolePrimaryKey }

func (c *ColumnMetadata) IsForeignKey() bool { return c.Role == KeyRoleForeignKey }

// Writable reports whether the column may appear in INSERT or UPDATE field lists.
func (c *ColumnMetadata) Writable() bool { return !c.IsCalculated }
