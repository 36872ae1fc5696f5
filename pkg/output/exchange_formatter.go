// Package output renders raw HTTP exchanges for the terminal.
package output

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/quick"
)

// ANSI color codes
const (
	ColorReset       = "\033[0m"
	ColorRed         = "\033[31m"
	ColorGreen       = "\033[32m"
	ColorYellow      = "\033[33m"
	ColorCyan        = "\033[36m"
	ColorBoldBlue    = "\033[1;34m"
	ColorBoldMagenta = "\033[1;35m"
)

// MaxTextBody is the longest body shown verbatim; longer or binary bodies are summarized
const MaxTextBody = 4096

// ExchangeFormatter formats a request and its response for terminal output
type ExchangeFormatter struct {
	useColor bool
	style    string
}

// NewExchangeFormatter creates a new exchange formatter
func NewExchangeFormatter(useColor bool) *ExchangeFormatter {
	return &ExchangeFormatter{
		useColor: useColor,
		style:    "monokai",
	}
}

// WriteExchange writes both messages, each under a section header
func (f *ExchangeFormatter) WriteExchange(w io.Writer, request, response []byte) error {
	sections := []struct {
		title string
		msg   []byte
	}{
		{"Request", request},
		{"Response", response},
	}

	for i, s := range sections {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		header := fmt.Sprintf("%s (%d bytes)", s.title, len(s.msg))
		if _, err := io.WriteString(w, f.colorizeText(header, ColorBoldMagenta)+"\n"); err != nil {
			return err
		}
		if err := f.Highlight(w, Summarize(s.msg)); err != nil {
			return err
		}
	}
	return nil
}

// Highlight writes an HTTP message using Chroma's HTTP lexer, falling back to
// plain ANSI coloring of the start line and headers
func (f *ExchangeFormatter) Highlight(w io.Writer, message string) error {
	if !f.useColor {
		_, err := io.WriteString(w, ensureNewline(message))
		return err
	}

	// Chroma's HTTP lexer expects LF line endings
	normalized := strings.ReplaceAll(message, "\r\n", "\n")
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, ensureNewline(normalized), "http", "terminal16m", f.style); err != nil {
		_, err = io.WriteString(w, ensureNewline(f.simpleColorize(normalized)))
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Summarize returns the message as text, replacing a binary or oversized body
// with a one-line placeholder
func Summarize(msg []byte) string {
	head, body, found := bytes.Cut(msg, []byte("\r\n\r\n"))
	if !found {
		return string(msg)
	}

	var sb strings.Builder
	sb.Write(head)
	sb.WriteString("\r\n\r\n")
	switch {
	case len(body) == 0:
	case !isText(body):
		fmt.Fprintf(&sb, "[binary body, %d bytes]", len(body))
	case len(body) > MaxTextBody:
		cut := runeBoundary(body, MaxTextBody)
		sb.Write(body[:cut])
		fmt.Fprintf(&sb, "\n[%d more bytes]", len(body)-cut)
	default:
		sb.Write(body)
	}
	return sb.String()
}

// runeBoundary backs n off to the start of the rune that straddles it
func runeBoundary(b []byte, n int) int {
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return n
}

func isText(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0) < 0
}

// colorizeText adds color to text if color is enabled
func (f *ExchangeFormatter) colorizeText(text string, colorCode string) string {
	if !f.useColor || colorCode == "" {
		return text
	}
	return fmt.Sprintf("%s%s%s", colorCode, text, ColorReset)
}

// simpleColorize colors the start line by status class and header names in cyan
func (f *ExchangeFormatter) simpleColorize(message string) string {
	lines := strings.Split(message, "\n")
	inHeaders := true

	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = f.colorizeText(line, startLineColor(line))
		case inHeaders && line == "":
			inHeaders = false
		case inHeaders:
			if name, value, ok := strings.Cut(line, ":"); ok {
				lines[i] = f.colorizeText(name, ColorCyan) + ":" + value
			}
		}
	}
	return strings.Join(lines, "\n")
}

func startLineColor(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "HTTP/") {
		return ColorBoldBlue
	}
	switch fields[1][0] {
	case '2':
		return ColorGreen
	case '3':
		return ColorCyan
	case '4':
		return ColorYellow
	default:
		return ColorRed
	}
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
