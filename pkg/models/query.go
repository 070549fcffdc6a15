package models

import "sort"

// NoLimit disables LIMIT or OFFSET in a QueryCriteria.
const NoLimit = -1

// QueryCriteria is the caller-supplied description of a query. The command
// builder reads it and never modifies it.
type QueryCriteria struct {
	// Select lists the selected expressions. Empty or ["*"] selects every column.
	Select    []string
	Join      string
	Condition string
	Group     string
	Having    string
	Order     string
	Limit     int
	Offset    int
	Distinct  bool
	Alias     string
	// Params maps placeholder names (with or without the leading ':') to values.
	// A value may be an Expression.
	Params map[string]any
}

// NewQueryCriteria returns criteria selecting every column with no limit or offset.
func NewQueryCriteria() *QueryCriteria {
	return &QueryCriteria{
		Limit:  NoLimit,
		Offset: NoLimit,
		Params: make(map[string]any),
	}
}

// SelectsAll reports whether the criteria select every column.
func (c *QueryCriteria) SelectsAll() bool {
	return len(c.Select) == 0 || (len(c.Select) == 1 && c.Select[0] == "*")
}

// Expression is a raw SQL fragment with its own named parameters. It is
// spliced into generated SQL instead of being rendered as a literal.
type Expression struct {
	SQL    string
	Params map[string]any
}

// NewExpression creates an Expression.
func NewExpression(sql string, params map[string]any) Expression {
	return Expression{SQL: sql, Params: params}
}

func (e Expression) String() string { return e.SQL }

// ColumnValue is one column assignment of an INSERT or UPDATE.
type ColumnValue struct {
	Column string
	Value  any
}

// ColumnValues keeps assignments in caller order.
type ColumnValues []ColumnValue

// ColumnValuesFromMap orders a map by column name.
func ColumnValuesFromMap(data map[string]any) ColumnValues {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(ColumnValues, 0, len(names))
	for _, name := range names {
		values = append(values, ColumnValue{Column: name, Value: data[name]})
	}
	return values
}

// Get returns the value assigned to column.
func (v ColumnValues) Get(column string) (any, bool) {
	for _, cv := range v {
		if cv.Column == column {
			return cv.Value, true
		}
	}
	return nil, false
}
