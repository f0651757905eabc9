package plugin

import (
	"fmt"
	"math"
	"sort"
)

// Options holds the free-form options of a plugin or service as decoded from the configuration
type Options map[string]interface{}

// Has reports whether the option is set
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// String returns a string option or def when it is not set
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: expected a string, got %T", key, v)
	}
	return s, nil
}

// RequiredString returns a string option that must be set and non-empty
func (o Options) RequiredString(key string) (string, error) {
	s, err := o.String(key, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("option %q is required", key)
	}
	return s, nil
}

// Bool returns a boolean option or def when it is not set
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q: expected a boolean, got %T", key, v)
	}
	return b, nil
}

// Float returns a numeric option or def when it is not set
func (o Options) Float(key string, def float64) (float64, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("option %q: expected a number, got %T", key, v)
	}
}

// Int returns an integral option or def when it is not set
func (o Options) Int(key string, def int) (int, error) {
	if !o.Has(key) {
		return def, nil
	}
	f, err := o.Float(key, float64(def))
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("option %q: expected an integer, got %v", key, f)
	}
	return int(f), nil
}

// Strings returns a list of strings, accepting a single string as a list of one
func (o Options) Strings(key string) ([]string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case string:
		return []string{list}, nil
	case []string:
		return append([]string(nil), list...), nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %q[%d]: expected a string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("option %q: expected a list of strings, got %T", key, v)
	}
}

// Keys returns the option names in sorted order
func (o Options) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Check fails on any option not listed in known
func (o Options) Check(known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	for _, k := range o.Keys() {
		if !allowed[k] {
			return fmt.Errorf("unknown option %q", k)
		}
	}
	return nil
}
