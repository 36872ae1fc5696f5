// Package request turns a raw HTTP/1.1 request buffer into a Request.
package request

import (
	"github.com/niels/rawhttpd/pkg/bytestr"
	"github.com/pkg/errors"
)

// Parser errors
var (
	// ErrMalformedRequestLine means the first line does not hold exactly two
	// single spaces.
	ErrMalformedRequestLine = errors.New("request: malformed request line")

	// ErrMissingLineBreaks means the buffer holds fewer than two CRLF sequences.
	ErrMissingLineBreaks = errors.New("request: fewer than two CRLF sequences")

	// ErrInvalidURI means the request URI could not be percent-decoded.
	ErrInvalidURI = errors.New("request: invalid URI encoding")
)

// Header prefixes matched against lower-cased header lines.
// "user_agent" is matched literally; a standard "User-Agent:" line does not
// match it.
var (
	hostPrefix      = bytestr.FromString("host:")
	userAgentPrefix = bytestr.FromString("user_agent")
)

// Request is a parsed HTTP request. It is immutable after Parse returns.
type Request struct {
	Method    bytestr.String
	URI       bytestr.String // percent-decoded
	Protocol  *bytestr.String
	Host      *bytestr.String
	UserAgent *bytestr.String
	Body      *bytestr.String
}

// Validate is the gate every buffer passes before it is parsed. The first
// line must contain exactly two spaces, never two in a row, and the whole
// buffer must contain at least two CRLF sequences.
func Validate(raw []byte) error {
	spaces := 0
	for i, c := range raw {
		if c == '\n' {
			break
		}
		if c != ' ' {
			continue
		}
		if i > 0 && raw[i-1] == ' ' {
			return errors.Wrapf(ErrMalformedRequestLine, "consecutive spaces at offset %d", i)
		}
		spaces++
	}
	if spaces != 2 {
		return errors.Wrapf(ErrMalformedRequestLine, "%d spaces", spaces)
	}

	crlf := 0
	for i := 1; i < len(raw); i++ {
		if raw[i] == '\n' && raw[i-1] == '\r' {
			crlf++
		}
	}
	if crlf < 2 {
		return errors.Wrapf(ErrMissingLineBreaks, "%d found", crlf)
	}
	return nil
}

// Parse validates raw and splits it into a Request.
//
// The header section ends at the first line whose first byte is a space;
// everything after that line is the body.
func Parse(raw []byte) (*Request, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	src := bytestr.Copy(raw)
	lines := src.Split('\n')

	req, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	for _, line := range lines[1:] {
		line.ToLowerCase()
		switch {
		case line.StartsWith(hostPrefix):
			_, host, err := line.SplitAtIndex(hostPrefix.Len())
			if err != nil {
				return nil, err
			}
			host.FormatStrip()
			req.Host = &host
		case line.StartsWith(userAgentPrefix):
			_, ua, err := line.SplitAtIndex(userAgentPrefix.Len())
			if err != nil {
				return nil, err
			}
			ua.Trim()
			req.UserAgent = &ua
		}
	}

	req.Body = findBody(src, lines)
	return req, nil
}

func parseRequestLine(line bytestr.String) (*Request, error) {
	if n := line.Len(); n > 0 && line.At(n-1) == '\r' {
		line, _, _ = line.SplitAtIndex(n - 1)
	}

	tokens := line.Split(' ')
	if len(tokens) < 2 {
		return nil, errors.Wrapf(ErrMalformedRequestLine, "%d tokens", len(tokens))
	}

	uri, err := tokens[1].PercentDecode()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidURI, err.Error())
	}

	req := &Request{
		Method: tokens[0],
		URI:    uri,
	}
	if len(tokens) > 2 {
		req.Protocol = &tokens[2]
	}
	return req, nil
}

// findBody returns the bytes following the first line that starts with a
// space, or nil when there is no such line or nothing follows it.
func findBody(src bytestr.String, lines []bytestr.String) *bytestr.String {
	start := 0
	for _, line := range lines {
		// each line is followed by the '\n' that Split removed
		start += line.Len() + 1
		if line.Len() == 0 || line.At(0) != ' ' {
			continue
		}
		if start >= src.Len() {
			return nil
		}
		body := bytestr.Copy(src.Bytes()[start:])
		return &body
	}
	return nil
}

// ContainsZeroByte reports whether the decoded URI holds an embedded zero byte
func (r *Request) ContainsZeroByte() bool {
	return r.URI.IndexByte(0) >= 0
}
