package lumen

import (
	"fmt"
	"time"
)

// Fields is a set of structured key/value pairs attached to a record or a
// context scope.
type Fields map[string]any

// clone returns a shallow copy so a caller mutating the original map after
// the call cannot affect an already-pushed scope.
func (f Fields) clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// coerce maps an arbitrary value to something the JSON encoder can emit
// without failing. Scalars pass through; known rich types get a canonical
// string form; everything else falls back to its fmt representation.
func coerce(v any) any {
	switch v := v.(type) {
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case time.Time:
		return v.UTC().Format(timestampLayout)
	case time.Duration:
		return v.String()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// fieldsFromPairs converts slog-style alternating key/value arguments into
// Fields. A dangling value is kept under !BADKEY rather than dropped.
func fieldsFromPairs(kv []any) Fields {
	if len(kv) == 0 {
		return nil
	}
	out := make(Fields, len(kv)/2+1)
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			out["!BADKEY"] = kv[i]
			break
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out[key] = kv[i+1]
	}
	return out
}
