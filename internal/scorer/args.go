package scorer

import (
	"fmt"
	"strconv"
)

// Args holds the init_args of a scorer descriptor.
type Args map[string]any

// String returns a string argument or def when absent.
func (a Args) String(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// RequireString returns a non-empty string argument.
func (a Args) RequireString(key string) (string, error) {
	s := a.String(key, "")
	if s == "" {
		return "", fmt.Errorf("missing required init arg %q", key)
	}
	return s, nil
}

// Bool returns a boolean argument or def when absent.
func (a Args) Bool(key string, def bool) (bool, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("init arg %q: %w", key, err)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("init arg %q: expected bool, got %T", key, v)
	}
}

// Int returns an integer argument or def when absent.
func (a Args) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("init arg %q: expected integer, got %v", key, n)
		}
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("init arg %q: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("init arg %q: expected integer, got %T", key, v)
	}
}

// Float returns a float argument or def when absent.
func (a Args) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("init arg %q: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("init arg %q: expected number, got %T", key, v)
	}
}

// StringSlice returns a list-of-strings argument.
func (a Args) StringSlice(key string) ([]string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("init arg %q: expected list of strings, got element %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("init arg %q: expected list of strings, got %T", key, v)
	}
}

// Map returns a nested object argument.
func (a Args) Map(key string) (map[string]any, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("init arg %q: expected object, got %T", key, v)
	}
	return m, nil
}
