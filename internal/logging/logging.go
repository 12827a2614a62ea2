// Package logging builds the *log.Logger values taskql components accept.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/steveyegge/taskql/internal/config"
)

// Sink is where log output goes. Close flushes and releases a rotating
// file; it is a no-op for stderr.
type Sink struct {
	w      io.Writer
	closer io.Closer
}

// NewSink opens the log destination described by cfg: stderr when
// cfg.File is empty, otherwise a size-rotated file.
func NewSink(cfg config.LogConfig) *Sink {
	if cfg.File == "" {
		return &Sink{w: os.Stderr}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return &Sink{w: lj, closer: lj}
}

// Writer returns the underlying writer.
func (s *Sink) Writer() io.Writer {
	return s.w
}

// Logger returns a logger tagged with component, e.g. "[engine] ".
func (s *Sink) Logger(component string) *log.Logger {
	return log.New(s.w, "["+component+"] ", log.LstdFlags)
}

// Close releases the log file, if any.
func (s *Sink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
