// Package response builds HTTP/1.1 responses and serializes them to wire bytes.
package response

import (
	"strconv"

	"github.com/niels/rawhttpd/pkg/bytestr"
	"github.com/pkg/errors"
)

// Protocol is the version written in every status line
const Protocol = "HTTP/1.1"

// ErrStatusNotSet is returned when a response without status is serialized
var ErrStatusNotSet = errors.New("response: status not set")

// Status is a status code with its reason phrase
type Status struct {
	Code        string
	Description string
}

// Statuses produced by the server
var (
	StatusOK                = Status{"200", "OK"}
	StatusPermanentRedirect = Status{"308", "Permanent Redirect"}
	StatusBadRequest        = Status{"400", "Bad Request"}
	StatusForbidden         = Status{"403", "Forbidden"}
	StatusNotFound          = Status{"404", "Not Found"}
	StatusURITooLong        = Status{"414", "URI Too Long"}
	StatusNotImplemented    = Status{"501", "Not Implemented"}
)

// Response is a structured HTTP response.
//
// ContentLength equals Body.Len() whenever a body is set; a response without
// body reports 0.
type Response struct {
	Protocol          bytestr.String
	StatusCode        bytestr.String
	StatusDescription bytestr.String
	ContentType       *bytestr.String
	ContentLength     int
	Location          *bytestr.String
	Body              *bytestr.String
}

// New returns an empty response
func New() *Response {
	return &Response{}
}

// SetStatus sets the status line and the protocol version
func (r *Response) SetStatus(status Status) {
	r.Protocol = bytestr.FromString(Protocol)
	r.StatusCode = bytestr.FromString(status.Code)
	r.StatusDescription = bytestr.FromString(status.Description)
}

// SetLocation sets the Location header
func (r *Response) SetLocation(location string) {
	loc := bytestr.FromString(location)
	r.Location = &loc
}

// SetBody sets the body together with its Content-Type and Content-Length
func (r *Response) SetBody(body bytestr.String, contentType bytestr.String) {
	r.Body = &body
	r.ContentLength = body.Len()
	r.ContentType = &contentType
}

// SetDefaultHTMLBody sets a minimal HTML page naming the status.
// The status must already be set.
func (r *Response) SetDefaultHTMLBody() {
	body := bytestr.FromString(`<!DOCTYPE html><html lang="de"><body><h1>`)
	body.ConcatString(r.StatusCode)
	body.Concat([]byte{' '})
	body.ConcatString(r.StatusDescription)
	body.Concat([]byte("</h1></body></html>"))
	r.SetBody(body, bytestr.FromString("text/html"))
}

// Serialize renders the response in wire format:
//
//	{protocol} {code} {description}\r\n
//	[Location: {value}\r\n]
//	[Content-Type: {value}\r\n]
//	Content-Length: {n}\r\n
//	\r\n{body}
//
// The blank line and body are only written when a body is set.
func (r *Response) Serialize() (bytestr.String, error) {
	if r.Protocol.Len() == 0 || r.StatusCode.Len() == 0 || r.StatusDescription.Len() == 0 {
		return bytestr.String{}, ErrStatusNotSet
	}

	out := r.Protocol.Clone()
	out.Concat([]byte{' '})
	out.ConcatString(r.StatusCode)
	out.Concat([]byte{' '})
	out.ConcatString(r.StatusDescription)
	out.Concat(crlf)

	if r.Location != nil {
		writeHeader(&out, "Location", *r.Location)
	}
	if r.ContentType != nil {
		writeHeader(&out, "Content-Type", *r.ContentType)
	}

	if r.Body == nil {
		writeHeader(&out, "Content-Length", bytestr.FromString("0"))
		return out, nil
	}

	writeHeader(&out, "Content-Length", bytestr.FromString(strconv.Itoa(r.Body.Len())))
	out.Concat(crlf)
	out.ConcatString(*r.Body)
	return out, nil
}

var crlf = []byte("\r\n")

func writeHeader(out *bytestr.String, name string, value bytestr.String) {
	out.Concat([]byte(name))
	out.Concat([]byte(": "))
	out.ConcatString(value)
	out.Concat(crlf)
}
