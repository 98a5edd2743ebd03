package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ToBool safely converts loosely typed values (fixture JSON, form posts, TINYINT bytes) to bool
func ToBool(val interface{}) bool {
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case []byte:
		return parseBoolString(string(v))
	case string:
		return parseBoolString(v)
	default:
		return parseBoolString(fmt.Sprintf("%v", v))
	}
}

func parseBoolString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "1" || lower == "true" || lower == "yes" || lower == "on" || lower == "t" {
		return true
	}
	if b, err := strconv.ParseBool(lower); err == nil {
		return b
	}
	return false
}

// ToInt64 converts numbers and numeric strings to int64
func ToInt64(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", val)
	}
}

// ToFloat64 converts numbers and numeric strings to float64
func ToFloat64(val interface{}) (float64, error) {
	switch v := val.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to number", val)
	}
}
