package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyRole_String(t *testing.T) {
	assert.Equal(t, "plain", KeyRolePlain.String())
	assert.Equal(t, "primary_key", KeyRolePrimaryKey.String())
	assert.Equal(t, "foreign_key", KeyRoleForeignKey.String())
}

func TestColumnMetadata_Flags(t *testing.T) {
	pk := &ColumnMetadata{Name: "zkp_id", Role: KeyRolePrimaryKey}
	fk := &ColumnMetadata{Name: "zkf_Company", Role: KeyRoleForeignKey}
	calc := &ColumnMetadata{Name: "FullName", IsCalculated: true}

	assert.True(t, pk.IsPrimaryKey())
	assert.False(t, pk.IsForeignKey())
	assert.True(t, fk.IsForeignKey())
	assert.False(t, fk.IsPrimaryKey())
	assert.True(t, pk.Writable())
	assert.False(t, calc.Writable())
}

func TestQueryCriteria_Defaults(t *testing.T) {
	c := NewQueryCriteria()

	assert.Equal(t, NoLimit, c.Limit)
	assert.Equal(t, NoLimit, c.Offset)
	assert.True(t, c.SelectsAll())

	c.Select = []string{"*"}
	assert.True(t, c.SelectsAll())

	c.Select = []string{`"Name"`}
	assert.False(t, c.SelectsAll())
}

func TestColumnValuesFromMap(t *testing.T) {
	values := ColumnValuesFromMap(map[string]any{"b": 2, "a": 1, "c": nil})

	assert.Equal(t, ColumnValues{
		{Column: "a", Value: 1},
		{Column: "b", Value: 2},
		{Column: "c", Value: nil},
	}, values)

	v, ok := values.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = values.Get("z")
	assert.False(t, ok)
}
