package mcp

import (
	"fmt"
	"sort"

	"mdcalc-mcp-server/internal/engine"
)

func getStringArg(args map[string]interface{}, key string) string {
	val, ok := args[key]
	if !ok {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getIntArg(args map[string]interface{}, key string, fallback int) int {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func getBoolArg(args map[string]interface{}, key string, fallback bool) bool {
	val, ok := args[key]
	if !ok {
		return fallback
	}
	if b, ok := val.(bool); ok {
		return b
	}
	return fallback
}

// parseAssignments reads the inputs argument in either of two shapes. The
// array form preserves caller order, which matters for fields revealed by
// earlier answers:
//
//	[{"field": "History", "value": "Moderately suspicious"}, ...]
//
// The object form {"History": "Moderately suspicious", ...} is also
// accepted; JSON objects carry no order, so entries are applied in sorted
// field order.
func parseAssignments(raw interface{}) ([]engine.Assignment, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("inputs is required")
	case []interface{}:
		out := make([]engine.Assignment, 0, len(v))
		for i, item := range v {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("inputs[%d]: expected object with field and value", i)
			}
			field := getStringArg(entry, "field")
			if field == "" {
				return nil, fmt.Errorf("inputs[%d]: field is required", i)
			}
			if _, present := entry["value"]; !present {
				return nil, fmt.Errorf("inputs[%d]: value is required", i)
			}
			out = append(out, engine.Assignment{Field: field, Value: getStringArg(entry, "value")})
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("inputs is empty")
		}
		return out, nil
	case map[string]interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("inputs is empty")
		}
		fields := make([]string, 0, len(v))
		for field := range v {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		out := make([]engine.Assignment, 0, len(fields))
		for _, field := range fields {
			out = append(out, engine.Assignment{Field: field, Value: getStringArg(v, field)})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("inputs must be an array of {field, value} pairs or an object")
	}
}
