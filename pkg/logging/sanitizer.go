package logging

import (
	"regexp"
)

const (
	// MaxStatementLogLength is the longest generated statement written to logs.
	MaxStatementLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// ODBC attribute values may be wrapped in braces to carry ';'.
	// Matches PWD={...}, Password=..., pass=... up to the next delimiter.
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=(\{[^}]*\}|[^;&\s]+)`)

	// user:pass@host in postgres:// and sqlserver:// URLs
	urlCredentialPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@`)

	// Quoted literals in generated SQL. Values are inlined, so they are
	// the only place record data appears in a statement.
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// SanitizeConnectionString removes credentials from DSNs, ODBC connection
// strings and database URLs. Use this before logging any connection string.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return urlCredentialPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")
}

// SanitizeError sanitizes error messages that might carry a connection string.
// Use this before logging any error from database operations.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}

// SanitizeStatement truncates a generated statement for logging and masks
// its string literals.
func SanitizeStatement(stmt string) string {
	if stmt == "" {
		return ""
	}
	masked := literalPattern.ReplaceAllString(stmt, "'?'")
	return TruncateString(masked, MaxStatementLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
