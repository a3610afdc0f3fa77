package lumen

import (
	"bytes"
	"encoding/json"
	"math"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// exceptionInfo carries a captured error as structured fields so the file
// sink stays machine-parseable.
type exceptionInfo struct {
	Type    string
	Message string
	Stack   string
}

// record is the immutable snapshot of a single log call. It is serialized
// immediately and not retained after emission.
type record struct {
	Timestamp time.Time
	Level     Level
	Logger    string
	Message   string
	Module    string
	Function  string
	Line      int
	Context   Fields
	Duration  float64 // milliseconds
	HasDurtn  bool
	Exception *exceptionInfo
	Extra     Fields
}

// callSite resolves module, function and line of the log call. skip counts
// stack frames above callSite itself, like runtime.Caller.
func callSite(skip int) (module, function string, line int) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", "unknown", 0
	}
	module = strings.TrimSuffix(filepath.Base(file), ".go")
	function = "unknown"
	if fn := runtime.FuncForPC(pc); fn != nil {
		function = fn.Name()
		if i := strings.LastIndexByte(function, '.'); i >= 0 {
			function = function[i+1:]
		}
	}
	return module, function, line
}

// appendJSON encodes the record as one JSON object. Key order is fixed:
// required keys first, then context, duration_ms, exception, then extra
// fields sorted by name. The result carries no trailing newline; the sink
// appends it so line framing stays in one place.
func (r *record) appendJSON(buf *bytes.Buffer) {
	buf.WriteByte('{')
	appendStringField(buf, "timestamp", r.Timestamp.UTC().Format(timestampLayout), true)
	appendStringField(buf, "level", r.Level.String(), false)
	appendStringField(buf, "logger", r.Logger, false)
	appendStringField(buf, "message", r.Message, false)
	appendStringField(buf, "module", r.Module, false)
	appendStringField(buf, "function", r.Function, false)
	buf.WriteString(`,"line":`)
	buf.WriteString(strconv.Itoa(r.Line))

	if len(r.Context) > 0 {
		buf.WriteString(`,"context":{`)
		for i, k := range sortedKeys(r.Context) {
			if i > 0 {
				buf.WriteByte(',')
			}
			appendString(buf, k)
			buf.WriteByte(':')
			appendValue(buf, r.Context[k])
		}
		buf.WriteByte('}')
	}

	if r.HasDurtn {
		buf.WriteString(`,"duration_ms":`)
		appendFloat(buf, r.Duration)
	}

	if r.Exception != nil {
		buf.WriteString(`,"exception":{`)
		appendString(buf, "type")
		buf.WriteByte(':')
		appendString(buf, r.Exception.Type)
		buf.WriteByte(',')
		appendString(buf, "message")
		buf.WriteByte(':')
		appendString(buf, r.Exception.Message)
		buf.WriteByte(',')
		appendString(buf, "stack")
		buf.WriteByte(':')
		appendString(buf, r.Exception.Stack)
		buf.WriteByte('}')
	}

	for _, k := range sortedKeys(r.Extra) {
		buf.WriteByte(',')
		appendString(buf, k)
		buf.WriteByte(':')
		appendValue(buf, r.Extra[k])
	}

	buf.WriteByte('}')
}

func sortedKeys(f Fields) []string {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func appendStringField(buf *bytes.Buffer, key, val string, first bool) {
	if !first {
		buf.WriteByte(',')
	}
	appendString(buf, key)
	buf.WriteByte(':')
	appendString(buf, val)
}

// appendString writes a JSON-escaped string.
func appendString(buf *bytes.Buffer, s string) {
	b, err := json.Marshal(s)
	if err != nil {
		// Marshal of a string cannot fail; keep the record alive anyway.
		buf.WriteString(`"?"`)
		return
	}
	buf.Write(b)
}

func appendFloat(buf *bytes.Buffer, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		appendString(buf, strconv.FormatFloat(v, 'f', -1, 64))
		return
	}
	buf.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
}

// appendValue writes a coerced field value.
func appendValue(buf *bytes.Buffer, v any) {
	switch v := coerce(v).(type) {
	case nil:
		buf.WriteString("null")
	case string:
		appendString(buf, v)
	case bool:
		buf.WriteString(strconv.FormatBool(v))
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int8:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int16:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case float32:
		appendFloat(buf, float64(v))
	case float64:
		appendFloat(buf, v)
	default:
		// coerce never returns another type.
		appendString(buf, "?")
	}
}
