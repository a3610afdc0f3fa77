// Package sink implements the destinations log records are written to: a
// size-rotated JSON-lines file and a colorized console, plus a reader for
// the rotated chain.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/lumenlog/lumen/internal/metrics"
)

const (
	// Writes queued in async mode before overflow drops kick in.
	asyncQueueSize = 10000
	// Batch bound and flush cadence of the async loop.
	asyncBatchSize    = 64
	asyncFlushEvery   = 250 * time.Millisecond
	failWarnInterval  = 30 * time.Second
	compressedBackExt = ".gz"
)

// FileOptions configures a FileSink.
type FileOptions struct {
	Path        string
	MaxSize     int64 // bytes; rotation threshold, 0 disables rotation
	BackupCount int   // rotated files retained; 0 truncates in place
	Compress    bool  // gzip rotated backups
	Async       bool  // buffered background writer
	Fallback    io.Writer
}

// FileSink appends one JSON line per record to a single file. Writes are
// serialized under a mutex so concurrent records never interleave; each
// record is one write syscall. When the file reaches MaxSize the sink
// renames it to <path>.1 (shifting older backups up, discarding past
// BackupCount) and starts fresh.
//
// A write failure never reaches the logging caller: the first one is
// reported to the fallback writer, subsequent ones degrade to a
// rate-limited warning plus silent drop until a write succeeds again.
type FileSink struct {
	opts FileOptions

	mu   sync.Mutex
	file *os.File
	size int64

	failing  bool
	dropped  int64
	lastWarn time.Time

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewFileSink opens (or creates) the sink file, creating the directory if
// needed.
func NewFileSink(opts FileOptions) (*FileSink, error) {
	if opts.Fallback == nil {
		opts.Fallback = os.Stderr
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	s := &FileSink{opts: opts}
	if err := s.open(); err != nil {
		return nil, err
	}

	if opts.Async {
		s.queue = make(chan []byte, asyncQueueSize)
		s.done = make(chan struct{})
		s.wg.Add(1)
		go s.runLoop()
	}
	return s, nil
}

func (s *FileSink) open() error {
	f, err := os.OpenFile(s.opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// Write emits one record line. The caller hands over ownership of line,
// which must not contain the trailing newline.
func (s *FileSink) Write(line []byte) {
	if s.opts.Async {
		select {
		case s.queue <- line:
		default:
			metrics.DroppedTotal.Inc()
			fmt.Fprintf(s.opts.Fallback, "lumen: file sink queue full, dropping record\n")
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeLocked(line)
}

func (s *FileSink) writeLocked(line []byte) {
	if s.file == nil {
		if err := s.open(); err != nil {
			s.failLocked(err)
			return
		}
	}

	framed := make([]byte, len(line)+1)
	copy(framed, line)
	framed[len(line)] = '\n'

	if s.opts.MaxSize > 0 && s.size > 0 && s.size+int64(len(framed)) > s.opts.MaxSize {
		if err := s.rotateLocked(); err != nil {
			s.failLocked(err)
			return
		}
	}

	n, err := s.file.Write(framed)
	if err != nil {
		s.failLocked(err)
		return
	}
	s.size += int64(n)
	s.failing = false
}

// rotateLocked shifts <path>.i to <path>.i+1 (oldest discarded), moves the
// current file to <path>.1, and reopens a fresh file. With Compress set,
// backups carry a .gz suffix.
func (s *FileSink) rotateLocked() error {
	if err := s.file.Close(); err != nil {
		return err
	}
	s.file = nil

	ext := ""
	if s.opts.Compress {
		ext = compressedBackExt
	}

	if s.opts.BackupCount > 0 {
		os.Remove(backupName(s.opts.Path, s.opts.BackupCount, ext))
		for i := s.opts.BackupCount - 1; i >= 1; i-- {
			// Renaming over a gap is fine; missing backups are skipped.
			os.Rename(backupName(s.opts.Path, i, ext), backupName(s.opts.Path, i+1, ext))
		}
		if s.opts.Compress {
			if err := gzipFile(s.opts.Path, backupName(s.opts.Path, 1, ext)); err != nil {
				return err
			}
			os.Remove(s.opts.Path)
		} else if err := os.Rename(s.opts.Path, backupName(s.opts.Path, 1, "")); err != nil {
			return err
		}
	} else if err := os.Remove(s.opts.Path); err != nil {
		return err
	}

	metrics.RotationsTotal.Inc()
	return s.open()
}

func backupName(path string, n int, ext string) string {
	return fmt.Sprintf("%s.%d%s", path, n, ext)
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// failLocked records a dropped write. The first failure is reported to the
// fallback sink; after that, warnings are rate limited so a dead disk does
// not turn the alternate sink into a firehose.
func (s *FileSink) failLocked(err error) {
	metrics.SinkErrorsTotal.WithLabelValues("file").Inc()
	metrics.DroppedTotal.Inc()

	now := time.Now()
	if !s.failing {
		s.failing = true
		s.dropped = 0
		s.lastWarn = now
		fmt.Fprintf(s.opts.Fallback, "lumen: file sink error on %s: %v (degrading to drop)\n", s.opts.Path, err)
		return
	}
	s.dropped++
	if now.Sub(s.lastWarn) >= failWarnInterval {
		fmt.Fprintf(s.opts.Fallback, "lumen: file sink still failing on %s: %v (%d records dropped)\n", s.opts.Path, err, s.dropped)
		s.lastWarn = now
		s.dropped = 0
	}
}

// runLoop drains the async queue in batches, flushing on size, on a ticker,
// and on shutdown.
func (s *FileSink) runLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(asyncFlushEvery)
	defer ticker.Stop()

	var batch [][]byte
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.mu.Lock()
		for _, line := range batch {
			s.writeLocked(line)
		}
		s.mu.Unlock()
		batch = batch[:0]
	}

	for {
		select {
		case line := <-s.queue:
			batch = append(batch, line)
			if len(batch) >= asyncBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case line := <-s.queue:
					batch = append(batch, line)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close flushes pending async writes and closes the file.
func (s *FileSink) Close() error {
	if s.opts.Async {
		close(s.done)
		s.wg.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
