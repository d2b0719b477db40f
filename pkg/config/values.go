package config

import (
	"fmt"
	"time"
)

// Values decoded from YAML arrive as int/bool/string/[]interface{}, values
// decoded from JSON arrive as float64/bool/string/[]interface{}. These
// helpers accept both.

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v interface{}) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v interface{}) (int, bool, error) {
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case float64:
		return int(n), true, nil
	case nil:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", v)
	}
}

// asDuration accepts Go duration strings ("60s", "500ms") or a number of
// milliseconds.
func asDuration(v interface{}) (time.Duration, bool, error) {
	switch d := v.(type) {
	case string:
		parsed, err := time.ParseDuration(d)
		if err != nil {
			return 0, false, fmt.Errorf("invalid duration %q: %w", d, err)
		}
		return parsed, true, nil
	case nil:
		return 0, false, nil
	default:
		ms, ok, err := asInt(v)
		if err != nil || !ok {
			return 0, ok, err
		}
		return time.Duration(ms) * time.Millisecond, true, nil
	}
}

func asStringSlice(v interface{}) ([]string, bool, error) {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false, fmt.Errorf("expected a list of strings, got element %T", item)
			}
			out = append(out, s)
		}
		return out, true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("expected a list of strings, got %T", v)
	}
}
