package tools

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/yugmatech/yt-mcp-server-odoo/internal/oerr"
)

// Argument extraction with the lenient coercions the tool schemas advertise:
// list-valued arguments accept a JSON array or a comma-separated string, and
// object-valued arguments accept a JSON object or a string containing one.
// The schema has already type-checked shapes; these helpers produce typed
// values and name the offending argument on failure.

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", oerr.Newf(oerr.KindValidation, "missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", oerr.Newf(oerr.KindValidation, "argument %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func optionalBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

func requiredInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, oerr.Newf(oerr.KindValidation, "missing required argument %q", key)
	}
	n, ok := intValue(v)
	if !ok {
		return 0, oerr.Newf(oerr.KindValidation, "argument %q must be an integer", key)
	}
	return n, nil
}

func optionalInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := intValue(v)
	if !ok {
		return 0, oerr.Newf(oerr.KindValidation, "argument %q must be an integer", key)
	}
	return n, nil
}

// stringList accepts ["a","b"], "a,b", or nothing.
func stringList(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case string:
		if strings.TrimSpace(list) == "" {
			return nil, nil
		}
		var out []string
		for _, part := range strings.Split(list, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				return nil, oerr.Newf(oerr.KindValidation, "argument %q has an empty element", key)
			}
			out = append(out, part)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok || s == "" {
				return nil, oerr.Newf(oerr.KindValidation, "argument %q must contain only non-empty strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, oerr.Newf(oerr.KindValidation, "argument %q must be an array or comma-separated string", key)
}

// intList accepts [1,2,3], "1,2,3", or nothing.
func intList(args map[string]any, key string) ([]int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case string:
		if strings.TrimSpace(list) == "" {
			return nil, nil
		}
		var out []int
		for _, part := range strings.Split(list, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, oerr.Newf(oerr.KindValidation, "argument %q must contain only integers", key)
			}
			out = append(out, n)
		}
		return out, nil
	case []any:
		out := make([]int, 0, len(list))
		for _, item := range list {
			n, ok := intValue(item)
			if !ok {
				return nil, oerr.Newf(oerr.KindValidation, "argument %q must contain only integers", key)
			}
			out = append(out, n)
		}
		return out, nil
	}
	return nil, oerr.Newf(oerr.KindValidation, "argument %q must be an array or comma-separated string", key)
}

// valuesMap accepts {"a":1} or "{\"a\":1}".
func valuesMap(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok {
		return nil, oerr.Newf(oerr.KindValidation, "missing required argument %q", key)
	}
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case string:
		var out map[string]any
		if err := json.Unmarshal([]byte(m), &out); err != nil {
			return nil, oerr.Wrapf(oerr.KindValidation, err, "argument %q is not a valid JSON object", key)
		}
		return out, nil
	}
	return nil, oerr.Newf(oerr.KindValidation, "argument %q must be an object or a JSON object string", key)
}

// anyList accepts a JSON array or a string containing one, decoded but not
// item-validated; callers shape per-item semantics.
func anyList(args map[string]any, key string) ([]any, error) {
	v, ok := args[key]
	if !ok {
		return nil, oerr.Newf(oerr.KindValidation, "missing required argument %q", key)
	}
	switch list := v.(type) {
	case []any:
		return list, nil
	case string:
		if strings.TrimSpace(list) == "" {
			return nil, nil
		}
		var out []any
		if err := json.Unmarshal([]byte(list), &out); err != nil {
			return nil, oerr.Wrapf(oerr.KindValidation, err, "argument %q is not a valid JSON array", key)
		}
		return out, nil
	}
	return nil, oerr.Newf(oerr.KindValidation, "argument %q must be an array or a JSON array string", key)
}
