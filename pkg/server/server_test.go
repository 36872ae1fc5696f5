package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/niels/rawhttpd/pkg/accesslog"
	"github.com/niels/rawhttpd/pkg/docroot"
	"github.com/niels/rawhttpd/pkg/exchangelog"
	"github.com/niels/rawhttpd/pkg/handler"
	"github.com/niels/rawhttpd/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frontend = "http://localhost:4200"

func newHandler(t *testing.T) *handler.Handler {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>hello</p>"), 0o644))
	return handler.New(docroot.Dir(root), frontend)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ReadTimeout = 5 * time.Second
	opts.WriteTimeout = 5 * time.Second
	opts.MaxTasks = 4
	return opts
}

type running struct {
	addr   string
	cancel context.CancelFunc
	done   chan struct{}
	stats  *Statistics
	err    error
}

func start(t *testing.T, srv *Server) *running {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{addr: ln.Addr().String(), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		r.stats, r.err = srv.Serve(ctx, ln)
	}()
	t.Cleanup(func() { r.stop(t) })
	return r
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func exchange(addr string, raw []byte) ([]byte, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}
	if _, err := conn.Write(raw); err != nil {
		return nil, err
	}
	return io.ReadAll(conn)
}

func roundTrip(t *testing.T, addr string, raw []byte) []byte {
	t.Helper()
	out, err := exchange(addr, raw)
	require.NoError(t, err)
	return out
}

func TestServeAnswersAndCloses(t *testing.T) {
	h := newHandler(t)
	srv := New(h, testOptions())
	r := start(t, srv)

	requests := [][]byte{
		[]byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n"),
		[]byte("GET /missing HTTP/1.1\r\nHost: localhost\r\n\r\n"),
		[]byte("PUT /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n"),
	}
	for _, raw := range requests {
		assert.Equal(t, string(h.Process(raw)), string(roundTrip(t, r.addr, raw)))
	}

	r.stop(t)
	require.NoError(t, r.err)
	require.NotNil(t, r.stats)
	assert.EqualValues(t, len(requests), r.stats.Accepted)
	assert.EqualValues(t, len(requests), r.stats.Served)
	assert.EqualValues(t, 0, r.stats.Failed)
}

func TestServeConcurrentClients(t *testing.T) {
	h := newHandler(t)
	opts := testOptions()
	opts.MaxTasks = 2

	var report bytes.Buffer
	srv := New(h, opts, WithReporter(accesslog.NewConsoleReporter().WithWriter(&report)))
	r := start(t, srv)

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	want := string(h.Process(raw))

	const clients = 20
	var wg sync.WaitGroup
	results := make([]string, clients)
	errs := make([]error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := exchange(r.addr, raw)
			results[i], errs[i] = string(out), err
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		require.NoError(t, errs[i], "client %d", i)
		assert.Equal(t, want, got, "client %d", i)
	}

	r.stop(t)
	require.NoError(t, r.err)
	assert.EqualValues(t, clients, r.stats.Served)
	assert.Equal(t, clients, r.stats.Access.Requests)
	assert.Equal(t, clients, r.stats.Access.ByClass["2xx"])
	assert.Contains(t, report.String(), "GET /index.html 200")
}

func TestServeEmptyConnection(t *testing.T) {
	srv := New(newHandler(t), testOptions())
	r := start(t, srv)

	conn, err := net.Dial("tcp", r.addr)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// A later request is still served
	raw := []byte("GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Contains(t, string(roundTrip(t, r.addr, raw)), "308 Permanent Redirect")

	r.stop(t)
	require.NoError(t, r.err)
	assert.EqualValues(t, 2, r.stats.Accepted)
	assert.EqualValues(t, 1, r.stats.Served)
	assert.EqualValues(t, 1, r.stats.Failed)
}

type panicky struct {
	next Processor
}

func (p panicky) Handle(raw []byte) handler.Result {
	if bytes.Contains(raw, []byte("/boom")) {
		panic("boom")
	}
	return p.next.Handle(raw)
}

func TestServeRecoversFromPanics(t *testing.T) {
	h := newHandler(t)
	r := start(t, New(panicky{next: h}, testOptions()))

	out := roundTrip(t, r.addr, []byte("GET /boom HTTP/1.1\r\nHost: localhost\r\n\r\n"))
	assert.Empty(t, out)

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, string(h.Process(raw)), string(roundTrip(t, r.addr, raw)))

	r.stop(t)
	assert.EqualValues(t, 1, r.stats.Failed)
	assert.EqualValues(t, 1, r.stats.Served)
}

// exhaustedListener fails Accept with EMFILE a fixed number of times
type exhaustedListener struct {
	net.Listener
	mu       sync.Mutex
	failures int
}

func (l *exhaustedListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if l.failures > 0 {
		l.failures--
		l.mu.Unlock()
		return nil, &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
	}
	l.mu.Unlock()
	return l.Listener.Accept()
}

func serveListener(t *testing.T, srv *Server, ln net.Listener) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := srv.Serve(ctx, ln)
		done <- err
	}()
	t.Cleanup(cancel)
	return cancel, done
}

func TestServeOutlastsAcceptRetries(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts := testOptions()
	opts.Retry = retry.Options{
		MaxRetries:      2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        2 * time.Millisecond,
		BackoffFactor:   2,
		IsRetryableFunc: retry.IsTemporary,
	}
	h := newHandler(t)
	// Three times the retry budget of a single backoff round
	ln := &exhaustedListener{Listener: inner, failures: 9}
	cancel, done := serveListener(t, New(h, opts), ln)

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, string(h.Process(raw)), string(roundTrip(t, inner.Addr().String(), raw)))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeStopsOnAcceptErrorWithoutRetries(t *testing.T) {
	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	opts := testOptions()
	opts.Retry = retry.Options{MaxRetries: 0, IsRetryableFunc: retry.IsTemporary}
	ln := &exhaustedListener{Listener: inner, failures: 1}
	_, done := serveListener(t, New(newHandler(t), opts), ln)

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, syscall.EMFILE)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeExchangeLog(t *testing.T) {
	var dump bytes.Buffer
	srv := New(newHandler(t), testOptions(), WithExchangeLog(exchangelog.NewWriterLogger(&dump)))
	r := start(t, srv)

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	roundTrip(t, r.addr, raw)
	r.stop(t)

	assert.Contains(t, dump.String(), string(raw))
	assert.Contains(t, dump.String(), "<p>hello</p>")
}

func TestListenAndServeInvalidAddress(t *testing.T) {
	srv := New(newHandler(t), testOptions())
	_, err := srv.ListenAndServe(context.Background(), "256.0.0.1:-1")
	assert.Error(t, err)
}

func TestServeStream(t *testing.T) {
	h := newHandler(t)
	srv := New(h, testOptions())

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	var out bytes.Buffer
	require.NoError(t, srv.ServeStream(bytes.NewReader(raw), &out))
	assert.Equal(t, string(h.Process(raw)), out.String())
}

func TestServeStreamLimit(t *testing.T) {
	h := newHandler(t)
	opts := testOptions()
	opts.BufferSize = 10
	srv := New(h, opts)

	raw := []byte("GET /index.html HTTP/1.1\r\nHost: localhost\r\n\r\n")
	var out bytes.Buffer
	require.NoError(t, srv.ServeStream(bytes.NewReader(raw), &out))
	assert.Equal(t, string(h.Process(raw[:9])), out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, fmt.Errorf("closed pipe") }

func TestServeStreamWriteError(t *testing.T) {
	srv := New(newHandler(t), testOptions())
	err := srv.ServeStream(strings.NewReader("GET / HTTP/1.1\r\n\r\n"), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write response")
}
