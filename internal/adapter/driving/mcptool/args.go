package mcptool

import (
	"fmt"
	"time"
)

// JSON numbers arrive as float64; these helpers normalize tool arguments.

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func intArg(args map[string]any, key string, required bool) (int, error) {
	v, ok := args[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("%s is required", key)
		}
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return int(f), nil
}

func intSliceArg(args map[string]any, key string) ([]int, error) {
	v, ok := args[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of numbers", key)
	}
	out := make([]int, 0, len(raw))
	for _, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%s must contain only numbers", key)
		}
		out = append(out, int(f))
	}
	return out, nil
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func durationArg(args map[string]any, key string, fallback time.Duration) time.Duration {
	f, ok := args[key].(float64)
	if !ok {
		return fallback
	}
	return time.Duration(f) * time.Second
}
