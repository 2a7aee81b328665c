package registry

import (
	"fmt"
	"math"
)

// String returns args[i] as a string.
func String(args []any, i int) (string, error) {
	v, err := arg(args, i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, v)
	}
	return s, nil
}

// Number returns args[i] as a float64. Integer types are accepted so that
// in-process callers need not pre-convert.
func Number(args []any, i int) (float64, error) {
	v, err := arg(args, i)
	if err != nil {
		return 0, err
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
	case int32:
		return float64(n), nil
	}
	return 0, fmt.Errorf("argument %d: expected number, got %T", i, v)
}

// Int returns args[i] as an int. Fractional numbers are rejected.
func Int(args []any, i int) (int, error) {
	f, err := Number(args, i)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %d: expected integer, got %v", i, f)
	}
	return int(f), nil
}

// Map returns args[i] as a map[string]any.
func Map(args []any, i int) (map[string]any, error) {
	v, err := arg(args, i)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %d: expected object, got %T", i, v)
	}
	return m, nil
}

func arg(args []any, i int) (any, error) {
	if i < 0 || i >= len(args) {
		return nil, fmt.Errorf("missing argument %d (got %d)", i, len(args))
	}
	return args[i], nil
}
