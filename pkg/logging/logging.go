package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.Mutex
	logFile *os.File
)

/*
Init configures the default charmbracelet logger. level is one of debug,
info, warn, error or fatal; an empty level keeps info. When path is set the
log is also appended to that file, without colors.
*/
func Init(level, path string) error {
	parsed := log.InfoLevel

	if level != "" {
		var err error

		if parsed, err = log.ParseLevel(level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()

	closeFile()

	var out io.Writer = os.Stderr

	if path != "" {
		fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)

		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}

		logFile = fh
		out = io.MultiWriter(os.Stderr, fh)
	}

	logger := log.NewWithOptions(out, log.Options{
		Level:           parsed,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})

	log.SetDefault(logger)
	log.Debug("logging initialized", "level", parsed, "file", path)

	return nil
}

// Close closes the log file, if any, and points the logger back at stderr.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile == nil {
		return
	}

	log.SetOutput(os.Stderr)
	closeFile()
}

func closeFile() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}
