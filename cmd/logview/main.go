// Command logview renders a rotated JSON log chain back into the colorized
// console format, with level and correlation-id filtering. It reads plain
// and gzip-compressed backups in rotation order, oldest first.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/lumenlog/lumen"
	"github.com/lumenlog/lumen/internal/config"
	"github.com/lumenlog/lumen/internal/sink"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dir := flag.String("dir", cfg.LogDir, "Log directory")
	name := flag.String("name", "app", "Logger name (reads <name>.log and its backups)")
	levelStr := flag.String("level", "DEBUG", "Minimum level to show")
	id := flag.String("id", "", "Only show records with this correlation id (prefix match)")
	noColor := flag.Bool("no-color", false, "Disable colorized output")
	flag.Parse()

	minLevel, err := lumen.ParseLevel(*levelStr)
	if err != nil {
		log.Fatalf("Invalid level: %v", err)
	}

	base := filepath.Join(*dir, *name+".log")
	files := sink.Chain(base, cfg.BackupCount)
	if len(files) == 0 {
		log.Fatalf("No log files found for %s", base)
	}

	console := sink.NewConsoleSink(os.Stdout)
	if *noColor {
		console.ForceColor(false)
	}

	shown := 0
	for _, path := range files {
		err := sink.ReadEntries(path, func(e sink.Entry) error {
			lvl, err := lumen.ParseLevel(e.Level)
			if err != nil || lvl < minLevel {
				return nil
			}
			if *id != "" && !matchID(e.CorrelationID, *id) {
				return nil
			}
			console.WriteLine(e.Level, formatEntry(e))
			shown++
			return nil
		})
		if err != nil {
			log.Printf("Skipping %s: %v", path, err)
		}
	}

	fmt.Fprintf(os.Stderr, "%d records from %d files\n", shown, len(files))
}

func matchID(got, want string) bool {
	if len(want) > len(got) {
		return false
	}
	return got[:len(want)] == want
}

func formatEntry(e sink.Entry) string {
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	fields := make(map[string]any, len(e.Extra))
	for k, v := range e.Extra {
		fields[k] = v
	}
	return sink.FormatLine(ts, e.Level, e.Logger, e.Message, e.CorrelationID,
		e.DurationMS, e.HasDuration, fields)
}
