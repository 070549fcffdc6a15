package tools

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/builder"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a successful tool result so the client sees the
// details instead of a bare protocol error.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use it for errors the caller can act on (bad arguments, unknown table).
// System failures such as a lost connection stay Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// inputErrors maps the engine's sentinel errors to result codes. Order
// matters: a missing table is also a schema error.
var inputErrors = []struct {
	err  error
	code string
}{
	{apperrors.ErrNotFound, "table_not_found"},
	{apperrors.ErrUnknownColumn, "unknown_column"},
	{apperrors.ErrNoUpdatableColumns, "no_updatable_columns"},
	{apperrors.ErrMissingKeyValue, "missing_key_value"},
	{apperrors.ErrUnboundParameter, "unbound_parameter"},
	{apperrors.ErrSuspiciousValue, "suspicious_value"},
	{apperrors.ErrUnsupportedOperation, "unsupported_operation"},
	{builder.ErrNoPrimaryKey, "no_primary_key"},
	{sqlbind.ErrMultipleStatements, "multiple_statements"},
}

// NewInputErrorResult returns an error result for errors caused by the
// tool arguments, or nil when err is a server failure.
func NewInputErrorResult(err error) *mcp.CallToolResult {
	if err == nil {
		return nil
	}
	for _, ie := range inputErrors {
		if errors.Is(err, ie.err) {
			return NewErrorResult(ie.code, err.Error())
		}
	}
	return NewSQLErrorResult(err)
}

// sqlStateRegex matches SQLSTATE codes in error messages like "(SQLSTATE 42601)".
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	if matches := sqlStateRegex.FindStringSubmatch(err.Error()); len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// IsSQLUserError reports SQL errors caused by the statement rather than the
// server: data exceptions (22), constraint violations (23), syntax or access
// rule violations (42) and WITH CHECK OPTION violations (44).
func IsSQLUserError(err error) bool {
	if err == nil {
		return false
	}
	state := sqlState(err)
	if len(state) < 2 {
		return false
	}
	switch state[:2] {
	case "22", "23", "42", "44":
		return true
	}
	return false
}

// SQLUserErrorCode returns a readable code for a SQL user error, or "".
func SQLUserErrorCode(err error) string {
	if !IsSQLUserError(err) {
		return ""
	}
	return mapSQLStateToCode(sqlState(err))
}

func mapSQLStateToCode(state string) string {
	switch state {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23502":
		return "not_null_violation"
	case "23514":
		return "check_violation"
	case "22001":
		return "value_too_long"
	case "22003":
		return "numeric_out_of_range"
	case "22007":
		return "invalid_datetime"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	}

	switch state[:2] {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "44":
		return "check_option_violation"
	}
	return "sql_error"
}

// ExtractSQLErrorMessage strips the SQLSTATE suffix and wrapping prefixes
// from a SQL error message.
func ExtractSQLErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}

	msg := err.Error()
	if idx := strings.Index(msg, " (SQLSTATE"); idx != -1 {
		msg = msg[:idx]
	}
	// wrapped messages keep the innermost text after the last prefix
	for _, prefix := range []string{"failed to execute statement: ", "failed to execute query: ", "ERROR: "} {
		if idx := strings.LastIndex(msg, prefix); idx != -1 {
			msg = msg[idx+len(prefix):]
		}
	}
	return msg
}

// NewSQLErrorResult creates an error result from a SQL user error, or
// returns nil when err is not one.
func NewSQLErrorResult(err error) *mcp.CallToolResult {
	if !IsSQLUserError(err) {
		return nil
	}
	return NewErrorResult(SQLUserErrorCode(err), ExtractSQLErrorMessage(err))
}
