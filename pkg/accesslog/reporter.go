package accesslog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Entry describes one answered request
type Entry struct {
	Time     time.Time
	Remote   string
	Method   string
	URI      string
	Status   string // three-digit code
	Bytes    int    // size of the serialized response
	Duration time.Duration
}

// Class returns the status class of the entry, e.g. "2xx"
func (e Entry) Class() string {
	if len(e.Status) != 3 {
		return "???"
	}
	return e.Status[:1] + "xx"
}

// Summary aggregates the entries recorded so far
type Summary struct {
	Requests int
	Bytes    int64
	ByClass  map[string]int
	Elapsed  time.Duration
}

// Reporter is an interface for reporting served requests
type Reporter interface {
	// Start announces the address the server is listening on
	Start(addr string)
	// Record reports one answered request
	Record(e Entry)
	// Finish prints the summary and returns it
	Finish() Summary
}

// ConsoleReporter implements Reporter for console output
type ConsoleReporter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
	requests  int
	bytes     int64
	byClass   map[string]int
}

// NewConsoleReporter creates a new console access reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		writer:    os.Stdout,
		startTime: time.Now(),
		byClass:   make(map[string]int),
	}
}

// WithWriter sets the writer for the console reporter
func (r *ConsoleReporter) WithWriter(writer io.Writer) *ConsoleReporter {
	r.writer = writer
	return r
}

// Start announces the address the server is listening on
func (r *ConsoleReporter) Start(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.startTime = time.Now()
	fmt.Fprintf(r.writer, "Serving on %s\n", color.CyanString(addr))
}

// Record prints one access line and counts it
func (r *ConsoleReporter) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests++
	r.bytes += int64(e.Bytes)
	r.byClass[e.Class()]++

	method, uri := e.Method, e.URI
	if method == "" {
		method = "-"
	}
	if uri == "" {
		uri = "-"
	}

	fmt.Fprintf(r.writer, "%s %s %s %s %s %d %s\n",
		e.Time.Format(time.RFC3339),
		e.Remote,
		method,
		uri,
		statusColor(e.Status).Sprint(e.Status),
		e.Bytes,
		e.Duration.Round(time.Microsecond))
}

// Finish prints the per-class summary and returns it
func (r *ConsoleReporter) Finish() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := Summary{
		Requests: r.requests,
		Bytes:    r.bytes,
		ByClass:  make(map[string]int, len(r.byClass)),
		Elapsed:  time.Since(r.startTime).Round(time.Second),
	}
	for class, n := range r.byClass {
		summary.ByClass[class] = n
	}

	fmt.Fprintf(r.writer, "\nServed %d requests (%d bytes) in %s\n", summary.Requests, summary.Bytes, summary.Elapsed)
	if len(summary.ByClass) > 0 {
		classes := make([]string, 0, len(summary.ByClass))
		for class := range summary.ByClass {
			classes = append(classes, class)
		}
		sort.Strings(classes)

		parts := make([]string, 0, len(classes))
		for _, class := range classes {
			parts = append(parts, statusColor(class).Sprintf("%s: %d", class, summary.ByClass[class]))
		}
		fmt.Fprintln(r.writer, strings.Join(parts, ", "))
	}

	return summary
}

// NopReporter discards all reports
type NopReporter struct{}

// Start does nothing
func (NopReporter) Start(string) {}

// Record does nothing
func (NopReporter) Record(Entry) {}

// Finish returns an empty summary
func (NopReporter) Finish() Summary { return Summary{ByClass: map[string]int{}} }

func statusColor(status string) *color.Color {
	if status == "" {
		return color.New(color.FgWhite)
	}
	switch status[0] {
	case '2':
		return color.New(color.FgGreen)
	case '3':
		return color.New(color.FgCyan)
	case '4':
		return color.New(color.FgYellow)
	case '5':
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}
