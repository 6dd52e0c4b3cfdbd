// Package shape reshapes vendor JSON into the simplified records returned
// by tools.
//
// Documents are the generic values produced by encoding/json (map[string]any,
// []any, float64, string, bool, nil). Field selection uses JSONPath
// expressions; a leading "$." is optional.
package shape

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PaesslerAG/jsonpath"
)

type evaluator = func(context.Context, interface{}) (interface{}, error)

var compiled sync.Map // expr -> evaluator

func compile(expr string) (evaluator, error) {
	if !strings.HasPrefix(expr, "$") {
		expr = "$." + expr
	}
	if v, ok := compiled.Load(expr); ok {
		return v.(evaluator), nil
	}
	eval, err := jsonpath.New(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	var fn evaluator = eval
	compiled.Store(expr, fn)
	return fn, nil
}

// Decode parses raw JSON into a generic document.
func Decode(raw []byte) (any, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Generic converts any JSON-marshalable value (for example an SDK struct)
// into a generic document.
func Generic(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Path evaluates expr against doc. Missing keys and invalid expressions
// yield nil.
func Path(doc any, expr string) any {
	eval, err := compile(expr)
	if err != nil {
		return nil
	}
	v, err := eval(context.Background(), doc)
	if err != nil {
		return nil
	}
	return v
}

// Pick builds a record whose keys are the keys of fields and whose values
// are the results of the matching path expressions. Missing paths become nil
// so every record has the same keys.
func Pick(doc any, fields map[string]string) map[string]any {
	out := make(map[string]any, len(fields))
	for name, expr := range fields {
		out[name] = Path(doc, expr)
	}
	return out
}

// PickEach applies Pick to every element of a JSON array. The result is
// never nil.
func PickEach(items any, fields map[string]string) []map[string]any {
	list := Items(items)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		out = append(out, Pick(item, fields))
	}
	return out
}

// Items returns v as a slice, or an empty slice when v is not an array.
func Items(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{}
}

// Compact drops keys whose value is nil, an empty string, an empty slice or
// an empty map.
func Compact(m map[string]any) map[string]any {
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if t == "" {
				delete(m, k)
			}
		case []any:
			if len(t) == 0 {
				delete(m, k)
			}
		case []string:
			if len(t) == 0 {
				delete(m, k)
			}
		case map[string]any:
			if len(t) == 0 {
				delete(m, k)
			}
		}
	}
	return m
}

// String renders scalar values as text. nil becomes "".
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float coerces JSON numbers and numeric strings. Anything else is 0.
func Float(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// Unix formats a Unix timestamp in seconds as RFC3339 UTC. Zero, missing
// and unparsable values yield "".
func Unix(ts any) string {
	sec := Float(ts)
	if sec == 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return ""
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC().Format(time.RFC3339)
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
