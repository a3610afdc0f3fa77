package sink

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func line(n int) []byte {
	return []byte(fmt.Sprintf(`{"n":%d,"pad":"%s"}`, n, strings.Repeat("x", 80)))
}

func mustStat(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info
}

func TestFileSinkWritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 1 << 20, BackupCount: 3})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	s.Write([]byte(`{"a":1}`))
	s.Write([]byte(`{"a":2}`))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "{\"a\":1}\n{\"a\":2}\n" {
		t.Errorf("file content = %q", got)
	}
}

func TestFileSinkRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	// Room for roughly three records per file.
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 300, BackupCount: 2})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	for i := 0; i < 20; i++ {
		s.Write(line(i))
	}

	// Current file stays under the limit.
	if size := mustStat(t, path).Size(); size > 300 {
		t.Errorf("live file size %d exceeds MaxSize", size)
	}

	// Exactly the bounded backups remain.
	for _, name := range []string{"app.log.1", "app.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected backup %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "app.log.3")); err == nil {
		t.Error("backup count exceeded BACKUP_COUNT")
	}
}

func TestFileSinkRotationBoundary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 150, BackupCount: 1})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	s.Write(line(1))
	if _, err := os.Stat(path + ".1"); err == nil {
		t.Error("first write must not rotate an empty file")
	}

	s.Write(line(2)) // crosses MaxSize, rotates first
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("crossing MaxSize should produce exactly one backup: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !bytes.Contains(data, []byte(`"n":2`)) {
		t.Error("record after rotation should land in the fresh file")
	}
}

func TestFileSinkCompressedBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 150, BackupCount: 2, Compress: true})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	for i := 0; i < 6; i++ {
		s.Write(line(i))
	}

	backup := path + ".1.gz"
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("expected compressed backup: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err == nil {
		t.Error("plain backup should not exist alongside compressed one")
	}

	// The compressed backup must read back as valid records.
	var got int
	if err := ReadEntries(backup, func(Entry) error { got++; return nil }); err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if got == 0 {
		t.Error("compressed backup contained no parseable records")
	}
}

func TestFileSinkZeroBackupsTruncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 150, BackupCount: 0})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer s.Close()

	for i := 0; i < 6; i++ {
		s.Write(line(i))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("BackupCount=0 should keep only the live file, found %d entries", len(entries))
	}
}

func TestFileSinkConcurrentWritesStayFramed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 1 << 20, BackupCount: 1})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	const workers, per = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				s.Write(line(w*1000 + i))
			}
		}(w)
	}
	wg.Wait()
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != workers*per {
		t.Fatalf("got %d lines, want %d", len(lines), workers*per)
	}
	for i, l := range lines {
		if !strings.HasPrefix(l, `{"n":`) || !strings.HasSuffix(l, `"}`) {
			t.Fatalf("line %d interleaved or corrupt: %q", i, l)
		}
	}
}

func TestFileSinkAsyncFlushOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 1 << 20, BackupCount: 1, Async: true})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	for i := 0; i < 10; i++ {
		s.Write(line(i))
	}
	s.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 10 {
		t.Errorf("async close flushed %d records, want 10", got)
	}
}

func TestFileSinkFailureFallsBackOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	fallback := &bytes.Buffer{}
	s, err := NewFileSink(FileOptions{Path: path, MaxSize: 1 << 20, BackupCount: 1, Fallback: fallback})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	// Break the handle underneath the sink.
	s.mu.Lock()
	s.file.Close()
	s.mu.Unlock()

	s.Write([]byte(`{"a":1}`))
	first := fallback.String()
	if !strings.Contains(first, "file sink error") {
		t.Fatalf("first failure should be reported to the fallback sink, got %q", first)
	}

	// Subsequent failures inside the warn window stay silent.
	s.Write([]byte(`{"a":2}`))
	s.Write([]byte(`{"a":3}`))
	if got := fallback.String(); got != first {
		t.Errorf("repeated failures should be rate limited, got %q", got)
	}
}
