package fetcher

import (
	"fmt"
	"strconv"
)

// coerceToString converts any extracted value to string
func coerceToString(value interface{}) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// coerceToInt64 attempts to convert an extracted value to int64. The remote
// document mixes JSON numbers and numeric strings for the same counters.
func coerceToInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case float32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		num, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string '%s' to number", v)
		}
		return num, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

// coerceToBool converts an extracted value to boolean. Flags in the document
// appear as booleans, 0/1 numbers, and occasionally strings.
func coerceToBool(value interface{}) bool {
	if value == nil {
		return false
	}

	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}
