package toolkit

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// RequireString returns a trimmed, non-empty string argument.
func RequireString(req mcp.CallToolRequest, name string) (string, error) {
	s := OptionalString(req, name)
	if s == "" {
		return "", Invalid("%s is required", name)
	}
	return s, nil
}

// OptionalString returns a trimmed string argument or "". Numbers are
// formatted so IDs sent as JSON numbers still work.
func OptionalString(req mcp.CallToolRequest, name string) string {
	switch v := req.GetArguments()[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// IntArg reads an integer argument sent as a JSON number or numeric string.
// Missing values yield def; values outside [min, max] are clamped.
func IntArg(req mcp.CallToolRequest, name string, def, min, max int) (int, error) {
	n, ok, err := OptionalInt(req, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		n = def
	}
	if n < min {
		n = min
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// OptionalInt reads an integer argument and reports whether it was present.
// Magnitudes beyond 2^53 saturate so callers can clamp them.
func OptionalInt(req mcp.CallToolRequest, name string) (int, bool, error) {
	f, ok, err := OptionalFloat(req, name)
	if err != nil || !ok {
		return 0, ok, err
	}
	if f != math.Trunc(f) {
		return 0, false, Invalid("%s must be an integer", name)
	}
	f = math.Max(-maxExactInt, math.Min(maxExactInt, f))
	return int(f), true, nil
}

// OptionalFloat reads a numeric argument and reports whether it was present.
func OptionalFloat(req mcp.CallToolRequest, name string) (float64, bool, error) {
	switch v := req.GetArguments()[name].(type) {
	case nil:
		return 0, false, nil
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, Invalid("%s must be a number", name)
		}
		return f, true, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, Invalid("%s must be a number", name)
		}
		return f, true, nil
	default:
		return 0, false, Invalid("%s must be a number", name)
	}
}

// BoolArg reads a boolean sent as true/false or "true"/"false".
func BoolArg(req mcp.CallToolRequest, name string, def bool) bool {
	switch v := req.GetArguments()[name].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// OptionalBool reads a boolean and reports whether it was present.
func OptionalBool(req mcp.CallToolRequest, name string) (bool, bool) {
	if _, ok := req.GetArguments()[name]; !ok {
		return false, false
	}
	switch v := req.GetArguments()[name].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

// StringList reads an array of strings or a comma separated string. Empty
// entries are dropped.
func StringList(req mcp.CallToolRequest, name string) []string {
	var raw []string
	switch v := req.GetArguments()[name].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case []string:
		raw = v
	case string:
		raw = strings.Split(v, ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ObjectArg reads an object argument sent as a JSON object or a string
// holding one. Missing values yield nil.
func ObjectArg(req mcp.CallToolRequest, name string) (map[string]any, error) {
	switch v := req.GetArguments()[name].(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, Invalid("%s must be a JSON object", name)
		}
		return m, nil
	default:
		return nil, Invalid("%s must be an object", name)
	}
}

// ObjectList reads an array of objects.
func ObjectList(req mcp.CallToolRequest, name string) ([]map[string]any, error) {
	switch v := req.GetArguments()[name].(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, Invalid("%s must be an array of objects", name)
			}
			out = append(out, m)
		}
		return out, nil
	case string:
		var out []map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, Invalid("%s must be a JSON array of objects", name)
		}
		return out, nil
	default:
		return nil, Invalid("%s must be an array of objects", name)
	}
}
