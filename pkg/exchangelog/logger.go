// Package exchangelog dumps raw request and response bytes for debugging.
package exchangelog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultLogFile is the default file path for exchange logging
	DefaultLogFile = "exchange.log"
)

// Logger appends request/response pairs to a writer
type Logger struct {
	out     io.Writer
	closer  io.Closer
	enabled bool
	mu      sync.Mutex
	now     func() time.Time
}

// NewLogger creates a new exchange logger writing to logFile
func NewLogger(enabled bool, logFile string) (*Logger, error) {
	if !enabled {
		return Disabled(), nil
	}

	if logFile == "" {
		logFile = DefaultLogFile
	}

	// Create directories if they don't exist
	dir := filepath.Dir(logFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open exchange log: %w", err)
	}

	l := NewWriterLogger(file)
	l.closer = file
	return l, nil
}

// NewWriterLogger creates an enabled exchange logger on an arbitrary writer
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{out: w, enabled: true, now: time.Now}
}

// Disabled returns a logger that drops everything
func Disabled() *Logger {
	return &Logger{enabled: false}
}

// Enabled reports whether exchanges are written
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close closes the underlying file, if any
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// LogExchange writes one request and its response verbatim, framed by markers
func (l *Logger) LogExchange(remote string, request, response []byte) error {
	if !l.Enabled() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.now().Format(time.RFC3339)
	sections := [][]byte{
		[]byte(fmt.Sprintf("\n\n===== EXCHANGE [%s] %s =====\n", timestamp, remote)),
		[]byte(fmt.Sprintf("----- request (%d bytes) -----\n", len(request))),
		request,
		[]byte(fmt.Sprintf("\n----- response (%d bytes) -----\n", len(response))),
		response,
		[]byte("\n===== END EXCHANGE =====\n"),
	}
	for _, s := range sections {
		if _, err := l.out.Write(s); err != nil {
			return err
		}
	}

	if f, ok := l.out.(*os.File); ok {
		return f.Sync()
	}
	return nil
}
