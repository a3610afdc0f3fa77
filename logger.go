package lumen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/lumenlog/lumen/internal/config"
	"github.com/lumenlog/lumen/internal/metrics"
	"github.com/lumenlog/lumen/internal/sink"
)

// Options tailors a logger at creation time. Zero values fall back to the
// environment configuration (LOG_LEVEL, LOG_DIR, MAX_FILE_SIZE,
// BACKUP_COUNT, SERVICE_NAME).
type Options struct {
	Level Level
	// HasLevel marks Level as explicitly set; DEBUG is a valid level, so
	// the zero value alone cannot mean "unset".
	HasLevel    bool
	Dir         string
	MaxFileSize int64
	BackupCount int
	// HasBackupCount distinguishes "keep zero backups" from "use default".
	HasBackupCount  bool
	CompressBackups bool
	Async           bool
	Console         io.Writer // destination of the human-readable line
	DisableConsole  bool
	DisableFile     bool
	DisableErrFile  bool // suppress the <name>_errors.log sink
	ServiceName     string
	BaseFields      Fields // ambient fields on every record
	EnableMetrics   bool   // serve /metrics on METRICS_PORT
}

// Logger emits structured records to a JSON file sink, an error-only file
// sink and a colorized console. Instances are safe for concurrent use.
type Logger struct {
	name  string
	level atomic.Int32
	base  Fields

	file    *sink.FileSink
	errFile *sink.FileSink
	console *sink.ConsoleSink
}

// New builds a logger without registering it. Most callers want GetLogger;
// New exists for throwaway instances with fully explicit options.
func New(name string, opts *Options) (*Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newLogger(name, cfg, opts)
}

func newLogger(name string, cfg *config.Config, opts *Options) (*Logger, error) {
	if opts == nil {
		opts = &Options{}
	}

	level := opts.Level
	if !opts.HasLevel {
		parsed, err := ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	dir := opts.Dir
	if dir == "" {
		dir = cfg.LogDir
	}
	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = cfg.MaxFileSize
	}
	backups := opts.BackupCount
	if !opts.HasBackupCount {
		backups = cfg.BackupCount
	}
	service := opts.ServiceName
	if service == "" {
		service = cfg.ServiceName
	}

	l := &Logger{name: name}
	l.level.Store(int32(level))

	if len(opts.BaseFields) > 0 {
		l.base = opts.BaseFields.clone()
	}
	if service != "" {
		if l.base == nil {
			l.base = make(Fields, 1)
		}
		if _, ok := l.base["service"]; !ok {
			l.base["service"] = service
		}
	}

	if !opts.DisableConsole {
		l.console = sink.NewConsoleSink(opts.Console)
	}

	var fallback io.Writer
	if opts.Console != nil {
		fallback = opts.Console
	}

	if !opts.DisableFile {
		fileSink, err := sink.NewFileSink(sink.FileOptions{
			Path:        filepath.Join(dir, name+".log"),
			MaxSize:     maxSize,
			BackupCount: backups,
			Compress:    opts.CompressBackups,
			Async:       opts.Async,
			Fallback:    fallback,
		})
		if err != nil {
			return nil, err
		}
		l.file = fileSink
	}

	if !opts.DisableFile && !opts.DisableErrFile {
		errSink, err := sink.NewFileSink(sink.FileOptions{
			Path:        filepath.Join(dir, name+"_errors.log"),
			MaxSize:     maxSize,
			BackupCount: backups,
			Compress:    opts.CompressBackups,
			Fallback:    fallback,
		})
		if err != nil {
			return nil, err
		}
		l.errFile = errSink
	}

	metrics.Register(nil)
	if opts.EnableMetrics && cfg.MetricsPort > 0 {
		if err := metrics.Serve(cfg.MetricsPort); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// SetLevel changes the minimum severity at runtime.
func (l *Logger) SetLevel(level Level) { l.level.Store(int32(level)) }

// Name returns the registry name the logger is bound to.
func (l *Logger) Name() string { return l.name }

// Close flushes and closes the file sinks. The logger must not be used
// afterwards.
func (l *Logger) Close() error {
	var first error
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			first = err
		}
	}
	if l.errFile != nil {
		if err := l.errFile.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Debug logs at DEBUG level with optional key/value pairs.
func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, LevelDebug, msg, nil, kv)
}

// Info logs at INFO level with optional key/value pairs.
func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, LevelInfo, msg, nil, kv)
}

// Warning logs at WARNING level with optional key/value pairs.
func (l *Logger) Warning(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, LevelWarning, msg, nil, kv)
}

// Error logs at ERROR level. When err is non-nil the record carries an
// exception object with the error's type, message and the current stack
// trace, keeping failures machine-parseable.
func (l *Logger) Error(ctx context.Context, msg string, err error, kv ...any) {
	l.log(ctx, LevelError, msg, err, kv)
}

// Critical logs at CRITICAL level with optional key/value pairs.
func (l *Logger) Critical(ctx context.Context, msg string, kv ...any) {
	l.log(ctx, LevelCritical, msg, nil, kv)
}

// log builds, serializes and emits one record. It never returns or raises
// an error: bad field values are coerced and sink failures are absorbed by
// the sinks themselves.
func (l *Logger) log(ctx context.Context, level Level, msg string, err error, kv []any) {
	if int32(level) < l.level.Load() {
		return
	}

	module, function, line := callSite(2)

	extra := fieldsFromPairs(kv)
	if len(l.base) > 0 {
		merged := l.base.clone()
		for k, v := range extra {
			merged[k] = v
		}
		extra = merged
	}

	rec := record{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Logger:    l.name,
		Message:   msg,
		Module:    module,
		Function:  function,
		Line:      line,
		Context:   ContextFields(ctx),
		Extra:     extra,
	}
	if err != nil {
		rec.Exception = &exceptionInfo{
			Type:    fmt.Sprintf("%T", err),
			Message: err.Error(),
			Stack:   string(debug.Stack()),
		}
	}
	if d, ok := extra["duration_ms"]; ok {
		if ms, ok := d.(float64); ok {
			rec.Duration = ms
			rec.HasDurtn = true
			delete(extra, "duration_ms")
		}
	}

	l.emit(&rec)
}

func (l *Logger) emit(rec *record) {
	metrics.RecordsTotal.WithLabelValues(rec.Level.String()).Inc()

	if l.file != nil || l.errFile != nil {
		var buf bytes.Buffer
		rec.appendJSON(&buf)
		if l.file != nil {
			l.file.Write(append([]byte(nil), buf.Bytes()...))
		}
		if l.errFile != nil && rec.Level >= LevelError {
			l.errFile.Write(append([]byte(nil), buf.Bytes()...))
		}
	}

	if l.console != nil {
		id, _ := rec.Context[CorrelationKey].(string)
		// Context fields render compactly alongside call-site fields;
		// the correlation id is shown as the [ID: ...] tag instead.
		compact := make(Fields, len(rec.Context)+len(rec.Extra))
		for k, v := range rec.Context {
			if k != CorrelationKey {
				compact[k] = v
			}
		}
		for k, v := range rec.Extra {
			compact[k] = v
		}
		line := sink.FormatLine(rec.Timestamp, rec.Level.String(), rec.Logger,
			rec.Message, id, rec.Duration, rec.HasDurtn, compact)
		l.console.WriteLine(rec.Level.String(), line)
	}
}
