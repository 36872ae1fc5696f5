// Package server carries raw requests from TCP connections or a byte stream
// to a handler and writes the responses back.
package server

import (
	"context"
	"io"
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/niels/rawhttpd/pkg/accesslog"
	"github.com/niels/rawhttpd/pkg/config"
	"github.com/niels/rawhttpd/pkg/exchangelog"
	"github.com/niels/rawhttpd/pkg/handler"
	"github.com/niels/rawhttpd/pkg/retry"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Processor answers one raw request
type Processor interface {
	Handle(raw []byte) handler.Result
}

// Options controls buffering, timeouts and concurrency
type Options struct {
	// BufferSize bounds a request: at most BufferSize-1 bytes are read
	BufferSize   int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxTasks is the number of connections handled at the same time
	MaxTasks int
	// Retry applies to temporary accept errors
	Retry retry.Options
}

// DefaultOptions returns the options of the default configuration
func DefaultOptions() Options {
	return OptionsFromConfig(config.LoadDefault())
}

// OptionsFromConfig derives server options from the application configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BufferSize:   cfg.Server.BufferSize,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxTasks:     cfg.Concurrency.MaxTasks,
		Retry:        retry.FromConfig(cfg),
	}
}

// Statistics summarizes a finished Serve call
type Statistics struct {
	Accepted int64
	Served   int64
	Failed   int64
	Duration time.Duration
	Access   accesslog.Summary
}

// Server accepts connections and answers exactly one request per connection
type Server struct {
	processor Processor
	opts      Options
	logger    zerolog.Logger
	reporter  accesslog.Reporter
	exchanges *exchangelog.Logger

	accepted atomic.Int64
	served   atomic.Int64
	failed   atomic.Int64
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for connection events
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithReporter sets the access reporter
func WithReporter(reporter accesslog.Reporter) Option {
	return func(s *Server) {
		s.reporter = reporter
	}
}

// WithExchangeLog dumps every request and response to l
func WithExchangeLog(l *exchangelog.Logger) Option {
	return func(s *Server) {
		s.exchanges = l
	}
}

// New creates a server for processor
func New(processor Processor, opts Options, options ...Option) *Server {
	if opts.BufferSize < 2 {
		opts.BufferSize = DefaultOptions().BufferSize
	}
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = 1
	}
	if opts.Retry.IsRetryableFunc == nil && len(opts.Retry.RetryableErrors) == 0 {
		opts.Retry.IsRetryableFunc = retry.IsTemporary
	}

	s := &Server{
		processor: processor,
		opts:      opts,
		logger:    zerolog.Nop(),
		reporter:  accesslog.NopReporter{},
		exchanges: exchangelog.Disabled(),
	}
	for _, o := range options {
		o(s)
	}
	if s.opts.Retry.Logger == nil {
		s.opts.Retry.Logger = retry.LogTo(s.logger)
	}
	return s
}

// ListenAndServe listens on the TCP address addr and calls Serve
func (s *Server) ListenAndServe(ctx context.Context, addr string) (*Statistics, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or accepting fails with
// a permanent error. With retries enabled, temporary errors are retried for
// as long as ctx lives. It closes ln and waits for in-flight connections
// before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (*Statistics, error) {
	start := time.Now()
	addr := ln.Addr().String()
	s.reporter.Start(addr)
	s.logger.Info().Str("address", addr).Int("max_tasks", s.opts.MaxTasks).Msg("Listening")

	g, gctx := errgroup.WithContext(ctx)

	var conns errgroup.Group
	conns.SetLimit(s.opts.MaxTasks)

	g.Go(func() error {
		<-gctx.Done()
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("Failed to close listener")
		}
		return nil
	})

	g.Go(func() error {
		for {
			conn, err := retry.Do(gctx, ln.Accept, s.opts.Retry)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				if s.opts.Retry.MaxRetries > 0 && retry.IsTemporary(err) {
					s.logger.Warn().Err(err).Msg("Accept keeps failing, backing off again")
					continue
				}
				return errors.Wrap(err, "accept")
			}
			s.accepted.Add(1)
			conns.Go(func() error {
				s.serveConn(conn)
				return nil
			})
		}
	})

	err := g.Wait()
	_ = conns.Wait()

	stats := &Statistics{
		Accepted: s.accepted.Load(),
		Served:   s.served.Load(),
		Failed:   s.failed.Load(),
		Duration: time.Since(start),
		Access:   s.reporter.Finish(),
	}
	s.logger.Info().
		Int64("accepted", stats.Accepted).
		Int64("served", stats.Served).
		Int64("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("Server stopped")
	return stats, err
}

func (s *Server) serveConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logger := s.logger.With().Str("remote", remote).Logger()
	defer conn.Close()
	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic while serving connection")
		}
	}()

	start := time.Now()
	if s.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(start.Add(s.opts.ReadTimeout))
	}

	buf := make([]byte, s.opts.BufferSize-1)
	n, err := conn.Read(buf)
	if n == 0 {
		s.failed.Add(1)
		if err != nil && !errors.Is(err, io.EOF) {
			logger.Debug().Err(err).Msg("Failed to read request")
		} else {
			logger.Debug().Msg("Connection closed without a request")
		}
		return
	}

	raw := buf[:n]
	res := s.processor.Handle(raw)

	if s.opts.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	if _, err := conn.Write(res.Bytes); err != nil {
		s.failed.Add(1)
		logger.Warn().Err(err).Msg("Failed to write response")
		return
	}

	s.finish(remote, raw, res, start)
}

func (s *Server) finish(remote string, raw []byte, res handler.Result, start time.Time) {
	s.served.Add(1)
	if err := s.exchanges.LogExchange(remote, raw, res.Bytes); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write exchange log")
	}
	s.reporter.Record(accesslog.Entry{
		Time:     start,
		Remote:   remote,
		Method:   res.Method,
		URI:      res.URI,
		Status:   res.Status.Code,
		Bytes:    len(res.Bytes),
		Duration: time.Since(start),
	})
}

// ServeStream reads one request of at most BufferSize-1 bytes from r and
// writes the response to w
func (s *Server) ServeStream(r io.Reader, w io.Writer) error {
	start := time.Now()
	raw, err := io.ReadAll(io.LimitReader(r, int64(s.opts.BufferSize-1)))
	if err != nil {
		return errors.Wrap(err, "read request")
	}

	res := s.processor.Handle(raw)
	if _, err := w.Write(res.Bytes); err != nil {
		return errors.Wrap(err, "write response")
	}

	s.finish("stdin", raw, res, start)
	return nil
}
