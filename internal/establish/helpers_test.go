package establish

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"honeyrelay/internal/transport"
)

// recordSink captures log lines as "LVL message".
type recordSink struct {
	mu    sync.Mutex
	lines []string
}

func (r *recordSink) add(level, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordSink) Debug(format string, args ...interface{}) { r.add("DBG", format, args...) }
func (r *recordSink) Warn(format string, args ...interface{})  { r.add("WRN", format, args...) }
func (r *recordSink) Error(format string, args ...interface{}) { r.add("ERR", format, args...) }

// find returns the first line containing every substring, or "".
func (r *recordSink) find(subs ...string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
next:
	for _, l := range r.lines {
		for _, s := range subs {
			if !strings.Contains(l, s) {
				continue next
			}
		}
		return l
	}
	return ""
}

func (r *recordSink) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.lines, "\n")
}

// fakeDialer returns canned results and counts calls.
type fakeDialer struct {
	mu    sync.Mutex
	calls int
	conn  net.Conn
	err   error
}

func (f *fakeDialer) Dial(_ context.Context, _ netip.AddrPort, opts transport.Options) (net.Conn, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if opts.OnSocket != nil {
		opts.OnSocket()
	}
	return f.conn, nil
}

func (f *fakeDialer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// addrlessConn is a connected pipe whose LocalAddr cannot be read.
type addrlessConn struct {
	net.Conn
	closed bool
}

func (c *addrlessConn) LocalAddr() net.Addr { return nil }

func (c *addrlessConn) Close() error {
	c.closed = true
	return c.Conn.Close()
}

// echoListener starts a TCP echo server on host and returns its address.
func echoListener(t *testing.T, host string) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp4", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Skipf("cannot listen on %s: %v", host, err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).AddrPort()
}

// closedPort returns an address on host where nothing is listening.
func closedPort(t *testing.T, host string) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp4", net.JoinHostPort(host, "0"))
	if err != nil {
		t.Skipf("cannot listen on %s: %v", host, err)
	}
	addr := ln.Addr().(*net.TCPAddr).AddrPort()
	ln.Close()
	return addr
}
