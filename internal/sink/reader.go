package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"
)

// Entry is the parsed view of one file-sink line, used when reading logs
// back (logview, tests). Extra holds the flattened caller fields.
type Entry struct {
	Timestamp     string
	Level         string
	Logger        string
	Message       string
	Module        string
	Function      string
	Line          int
	CorrelationID string
	DurationMS    float64
	HasDuration   bool
	Context       map[string]string
	Extra         map[string]string
}

var parsers fastjson.ParserPool

// reservedKeys are the fixed record keys; everything else lands in Extra.
var reservedKeys = map[string]bool{
	"timestamp": true, "level": true, "logger": true, "message": true,
	"module": true, "function": true, "line": true,
	"context": true, "duration_ms": true, "exception": true,
}

// Chain returns the rotated files for path, oldest first, ending with the
// live file. Missing backups are skipped; compressed and plain suffixes are
// both considered.
func Chain(path string, backupCount int) []string {
	var files []string
	for i := backupCount; i >= 1; i-- {
		for _, name := range []string{
			fmt.Sprintf("%s.%d%s", path, i, compressedBackExt),
			fmt.Sprintf("%s.%d", path, i),
		} {
			if _, err := os.Stat(name); err == nil {
				files = append(files, name)
				break
			}
		}
	}
	if _, err := os.Stat(path); err == nil {
		files = append(files, path)
	}
	return files
}

// ReadEntries streams the parsed entries of one file to fn, transparently
// decompressing .gz backups. Lines that do not parse as JSON are skipped;
// a reader must survive a partially written tail. fn returning an error
// stops the scan.
func ReadEntries(path string, fn func(Entry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, compressedBackExt) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open compressed backup %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	p := parsers.Get()
	defer parsers.Put(p)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		v, err := p.Parse(scanner.Text())
		if err != nil {
			continue
		}
		if err := fn(parseEntry(v)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseEntry(v *fastjson.Value) Entry {
	e := Entry{
		Timestamp: string(v.GetStringBytes("timestamp")),
		Level:     string(v.GetStringBytes("level")),
		Logger:    string(v.GetStringBytes("logger")),
		Message:   string(v.GetStringBytes("message")),
		Module:    string(v.GetStringBytes("module")),
		Function:  string(v.GetStringBytes("function")),
		Line:      v.GetInt("line"),
	}
	if d := v.Get("duration_ms"); d != nil {
		e.DurationMS = d.GetFloat64()
		e.HasDuration = true
	}
	if ctx := v.GetObject("context"); ctx != nil {
		e.Context = make(map[string]string)
		ctx.Visit(func(key []byte, val *fastjson.Value) {
			e.Context[string(key)] = valueString(val)
		})
		e.CorrelationID = e.Context["correlation_id"]
	}
	if obj, err := v.Object(); err == nil {
		obj.Visit(func(key []byte, val *fastjson.Value) {
			k := string(key)
			if reservedKeys[k] {
				return
			}
			if e.Extra == nil {
				e.Extra = make(map[string]string)
			}
			e.Extra[k] = valueString(val)
		})
	}
	return e
}

func valueString(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return v.String()
}
