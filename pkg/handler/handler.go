// Package handler turns one raw request buffer into one raw response buffer.
package handler

import (
	"github.com/niels/rawhttpd/pkg/bytestr"
	"github.com/niels/rawhttpd/pkg/docroot"
	"github.com/niels/rawhttpd/pkg/mimetype"
	"github.com/niels/rawhttpd/pkg/request"
	"github.com/niels/rawhttpd/pkg/response"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// MaxURILength is the longest decoded URI that is still served
const MaxURILength = 255

var (
	methodGet  = bytestr.FromString("GET")
	methodPost = bytestr.FromString("POST")
)

// FileSystem is the file-access layer behind the handler
type FileSystem interface {
	// Resolve classifies a URI path against the document root
	Resolve(uriPath string) docroot.Verdict
	// ReadFile returns the bytes of a regular file; directories are not found
	ReadFile(uriPath string) (bytestr.String, error)
}

// Handler dispatches requests to the file system or the front-end redirect.
// It holds no per-request state and is safe for concurrent use.
type Handler struct {
	files    FileSystem
	frontend string
	logger   zerolog.Logger
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger used for dispatch decisions
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// New creates a handler serving files from fs and redirecting "/" to frontend
func New(fs FileSystem, frontend string, opts ...Option) *Handler {
	h := &Handler{
		files:    fs,
		frontend: frontend,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Result describes a processed request, for access logging
type Result struct {
	Method string
	URI    string
	Status response.Status
	Bytes  []byte
}

// Process answers raw with a complete response. It never fails: every
// problem with the request is expressed as a status code.
func (h *Handler) Process(raw []byte) []byte {
	return h.Handle(raw).Bytes
}

// Handle is Process with the dispatch outcome attached
func (h *Handler) Handle(raw []byte) Result {
	resp := response.New()
	result := Result{}

	req, err := request.Parse(raw)
	if err != nil {
		h.logger.Debug().Err(err).Int("size", len(raw)).Msg("Rejecting malformed request")
		fail(resp, response.StatusBadRequest)
		return h.finish(result, resp)
	}
	result.Method = req.Method.String()
	result.URI = req.URI.String()

	h.dispatch(req, resp)
	return h.finish(result, resp)
}

func (h *Handler) dispatch(req *request.Request, resp *response.Response) {
	uri := req.URI

	if req.ContainsZeroByte() {
		fail(resp, response.StatusBadRequest)
		return
	}
	if uri.Len() > MaxURILength {
		fail(resp, response.StatusURITooLong)
		return
	}
	if uri.Len() == 0 || uri.At(0) != '/' {
		fail(resp, response.StatusNotImplemented)
		return
	}

	switch {
	case req.Method.Equals(methodGet):
		h.get(uri, resp)
	case req.Method.Equals(methodPost):
		// recognized, but uploads are not supported
		fail(resp, response.StatusNotImplemented)
	default:
		fail(resp, response.StatusNotImplemented)
	}
}

func (h *Handler) get(uri bytestr.String, resp *response.Response) {
	if uri.Len() == 1 {
		resp.SetStatus(response.StatusPermanentRedirect)
		resp.SetLocation(h.frontend)
		return
	}

	path := uri.String()
	verdict := h.files.Resolve(path)
	h.logger.Debug().Str("uri", path).Stringer("verdict", verdict).Msg("Resolved request path")

	switch verdict {
	case docroot.Found:
		body, err := h.files.ReadFile(path)
		if err != nil {
			if !errors.Is(err, docroot.ErrNotFound) {
				h.logger.Warn().Err(err).Str("uri", path).Msg("Failed to read file")
			}
			fail(resp, response.StatusNotFound)
			return
		}
		resp.SetStatus(response.StatusOK)
		resp.SetBody(body, mimetype.Resolve(mimetype.Extension(uri)))
	case docroot.NotFound:
		fail(resp, response.StatusNotFound)
	default:
		fail(resp, response.StatusForbidden)
	}
}

func (h *Handler) finish(result Result, resp *response.Response) Result {
	out, err := resp.Serialize()
	if err != nil {
		// unreachable while every branch sets a status
		h.logger.Error().Err(err).Msg("Failed to serialize response")
		resp = response.New()
		fail(resp, response.StatusBadRequest)
		out, _ = resp.Serialize()
	}
	result.Status = response.Status{
		Code:        resp.StatusCode.String(),
		Description: resp.StatusDescription.String(),
	}
	result.Bytes = out.Bytes()
	return result
}

func fail(resp *response.Response, status response.Status) {
	resp.SetStatus(status)
	resp.SetDefaultHTMLBody()
}
