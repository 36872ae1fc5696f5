package exchangelog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogExchange(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	req := []byte("GET / HTTP/1.1\r\n\r\n")
	resp := []byte("HTTP/1.1 308 Permanent Redirect\r\nContent-Length: 0\r\n")
	if err := l.LogExchange("127.0.0.1:5000", req, resp); err != nil {
		t.Fatalf("LogExchange failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"===== EXCHANGE [2024-05-01T12:00:00Z] 127.0.0.1:5000 =====",
		"----- request (18 bytes) -----\n" + string(req),
		"----- response (52 bytes) -----\n" + string(resp),
		"===== END EXCHANGE =====",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestDisabledLogger(t *testing.T) {
	l, err := NewLogger(false, filepath.Join(t.TempDir(), "never.log"))
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if l.Enabled() {
		t.Errorf("Expected disabled logger")
	}
	if err := l.LogExchange("x", []byte("a"), []byte("b")); err != nil {
		t.Errorf("Disabled logger should not fail, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close on disabled logger failed: %v", err)
	}

	var nilLogger *Logger
	if nilLogger.Enabled() {
		t.Errorf("Nil logger must report disabled")
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "exchange.log")
	l, err := NewLogger(true, path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	if err := l.LogExchange("peer", []byte("req"), []byte("resp")); err != nil {
		t.Fatalf("LogExchange failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "req") || !strings.Contains(string(data), "resp") {
		t.Errorf("Expected request and response in log, got: %s", data)
	}
}
