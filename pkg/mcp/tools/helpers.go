package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

// trimString removes leading and trailing whitespace from a string.
func trimString(s string) string {
	return strings.TrimSpace(s)
}

func arguments(req mcp.CallToolRequest) map[string]any {
	args, _ := req.Params.Arguments.(map[string]any)
	return args
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	val, _ := arguments(req)[key].(string)
	return trimString(val)
}

// getOptionalFloat extracts an optional number argument from the request.
func getOptionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	val, ok := arguments(req)[key].(float64)
	return val, ok
}

// getOptionalBool extracts an optional boolean argument from the request.
func getOptionalBool(req mcp.CallToolRequest, key string) bool {
	val, _ := arguments(req)[key].(bool)
	return val
}

// getOptionalObject extracts an optional JSON object argument.
func getOptionalObject(req mcp.CallToolRequest, key string) map[string]any {
	val, _ := arguments(req)[key].(map[string]any)
	return val
}

// getOptionalStringSlice extracts an optional array of strings. Non-string
// items are converted with cast.
func getOptionalStringSlice(req mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := arguments(req)[key]
	if !ok || raw == nil {
		return nil, nil
	}
	items, err := cast.ToStringSliceE(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter '%s' must be an array of strings", key)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = trimString(item); item != "" {
			out = append(out, item)
		}
	}
	return out, nil
}

// requireTable reads the mandatory table argument.
func requireTable(req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	table, err := req.RequireString("table")
	if err != nil {
		return "", NewErrorResult("invalid_parameters", "parameter 'table' is required")
	}
	table = trimString(table)
	if table == "" {
		return "", NewErrorResult("invalid_parameters", "parameter 'table' cannot be empty")
	}
	return table, nil
}

// rowLimit clamps the limit argument to (0, maxRowLimit].
func rowLimit(req mcp.CallToolRequest) int {
	limit := defaultRowLimit
	if v, ok := getOptionalFloat(req, "limit"); ok && v > 0 {
		limit = int(v)
	}
	if limit > maxRowLimit {
		limit = maxRowLimit
	}
	return limit
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
