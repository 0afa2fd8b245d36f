package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// The MySQL driver hands back []byte for text columns and int64 for
// integers; SQLite produces string and int64, and both return NULL as nil.
// These helpers normalize Row values so migrators never branch on dialect.

// AsString normalizes a row value to string. Nil becomes the empty string.
func AsString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AsUint64 normalizes a row value to uint64. Unparseable values become zero.
func AsUint64(v any) uint64 {
	switch val := v.(type) {
	case nil:
		return 0
	case uint64:
		return val
	case int64:
		if val < 0 {
			return 0
		}
		return uint64(val)
	case int:
		if val < 0 {
			return 0
		}
		return uint64(val)
	case uint:
		return uint64(val)
	case int32:
		if val < 0 {
			return 0
		}
		return uint64(val)
	case uint32:
		return uint64(val)
	case float64:
		if val < 0 {
			return 0
		}
		return uint64(val)
	case []byte:
		n, _ := strconv.ParseUint(string(val), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseUint(val, 10, 64)
		return n
	default:
		return 0
	}
}

// AsInt64 normalizes a row value to int64. Unparseable values become zero.
func AsInt64(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case uint64:
		return int64(val)
	case uint32:
		return int64(val)
	case float64:
		return int64(val)
	case []byte:
		n, _ := strconv.ParseInt(string(val), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}

// AsBool normalizes a row value to bool. Numeric values are true when
// non-zero; strings accept the usual spellings.
func AsBool(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int64:
		return val != 0
	case int:
		return val != 0
	case uint64:
		return val != 0
	case float64:
		return val != 0
	case []byte:
		return parseBoolString(string(val))
	case string:
		return parseBoolString(val)
	default:
		return false
	}
}

func parseBoolString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "on", "yes":
		return true
	default:
		return false
	}
}
