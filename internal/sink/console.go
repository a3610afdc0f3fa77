package sink

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lumenlog/lumen/internal/metrics"
)

// ANSI colors per level name.
var levelColors = map[string]string{
	"DEBUG":    "\033[36m", // cyan
	"INFO":     "\033[32m", // green
	"WARNING":  "\033[33m", // yellow
	"ERROR":    "\033[31m", // red
	"CRITICAL": "\033[35m", // magenta
}

const colorReset = "\033[0m"

// ConsoleSink writes one human-readable line per record, colorized by level
// when the destination is a terminal.
type ConsoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsoleSink builds a console sink for w; nil defaults to stdout.
func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{w: w, color: isTerminal(w)}
}

// ForceColor overrides terminal detection, mainly for tests and logview.
func (c *ConsoleSink) ForceColor(on bool) { c.color = on }

// WriteLine emits a preformatted line, wrapping it in the level's color.
func (c *ConsoleSink) WriteLine(level, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.color {
		_, err = fmt.Fprintf(c.w, "%s%s%s\n", levelColors[level], line, colorReset)
	} else {
		_, err = fmt.Fprintln(c.w, line)
	}
	if err != nil {
		metrics.SinkErrorsTotal.WithLabelValues("console").Inc()
		fmt.Fprintf(os.Stderr, "lumen: console sink error: %v\n", err)
	}
}

// FormatLine renders the compact console form:
//
//	[2026-01-02 15:04:05] INFO     name: message [ID: 1a2b3c4d] [12.34ms] k=v
func FormatLine(ts time.Time, level, logger, message, correlationID string, durationMS float64, hasDuration bool, fields map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-8s %s: %s", ts.Local().Format("2006-01-02 15:04:05"), level, logger, message)
	if correlationID != "" {
		id := correlationID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(&b, " [ID: %s]", id)
	}
	if hasDuration {
		fmt.Fprintf(&b, " [%.2fms]", durationMS)
	}
	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, fields[k])
		}
	}
	return b.String()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
