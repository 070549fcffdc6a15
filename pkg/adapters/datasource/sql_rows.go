package datasource

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLQuery runs sqlQuery on db and collects every row. Text columns that the
// driver returns as []byte are converted to string when isText reports true
// for the column's database type name. A nil isText converts every []byte.
func SQLQuery(ctx context.Context, db *sql.DB, sqlQuery string, isText func(dbType string) bool) (*QueryExecutionResult, error) {
	rows, err := db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]ColumnInfo, len(columnNames))
	for i, colName := range columnNames {
		columns[i] = ColumnInfo{
			Name: colName,
			Type: columnTypes[i].DatabaseTypeName(),
		}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			val := values[i]
			if b, ok := val.([]byte); ok && (isText == nil || isText(columns[i].Type)) {
				val = string(b)
			}
			rowMap[col] = val
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

// SQLExec runs a statement on db and reports the rows it affected. Drivers
// that cannot report a count yield -1.
func SQLExec(ctx context.Context, db *sql.DB, sqlStatement string) (*ExecuteResult, error) {
	execResult, err := db.ExecContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}

	rowsAffected, err := execResult.RowsAffected()
	if err != nil {
		rowsAffected = -1
	}
	return &ExecuteResult{RowsAffected: rowsAffected}, nil
}
