package core

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"honeyrelay/internal/capability"
	"honeyrelay/internal/establish"
	"honeyrelay/internal/metrics"
	"honeyrelay/util"
)

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

func addrPort(t *testing.T, a net.Addr) netip.AddrPort {
	t.Helper()
	ap, ok := util.AddrPortOf(a)
	if !ok {
		t.Fatalf("not a TCP address: %v", a)
	}
	return ap
}

// echoServer accepts connections on host and echoes each until EOF.
func echoServer(t *testing.T, host string) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp4", host+":0")
	if err != nil {
		t.Skipf("cannot listen on %s: %v", host, err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				io.Copy(c, c) //nolint:errcheck
			}()
		}
	}()
	return addrPort(t, ln.Addr())
}

// collector accepts connections on host and records everything read.
type collector struct {
	addr netip.AddrPort
	mu   sync.Mutex
	buf  bytes.Buffer
}

func newCollector(t *testing.T, host string) *collector {
	t.Helper()
	ln, err := net.Listen("tcp4", host+":0")
	if err != nil {
		t.Skipf("cannot listen on %s: %v", host, err)
	}
	t.Cleanup(func() { ln.Close() })
	c := &collector{addr: addrPort(t, ln.Addr())}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				b := make([]byte, 1024)
				for {
					n, err := conn.Read(b)
					c.mu.Lock()
					c.buf.Write(b[:n])
					c.mu.Unlock()
					if err != nil {
						return
					}
				}
			}()
		}
	}()
	return c
}

// waitFor polls until the collector holds want or the deadline passes.
func (c *collector) waitFor(want string, d time.Duration) string {
	deadline := time.Now().Add(d)
	for {
		c.mu.Lock()
		got := c.buf.String()
		c.mu.Unlock()
		if got == want || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// closedPort returns an address on host that refuses connections.
func closedPort(t *testing.T, host string) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp4", host+":0")
	if err != nil {
		t.Skipf("cannot listen on %s: %v", host, err)
	}
	ap := addrPort(t, ln.Addr())
	ln.Close()
	return ap
}

func newListenMode(proxy netip.AddrPort, m *metrics.Collector) *ListenMode {
	logger := quietLogger()
	return &ListenMode{
		Address:     "127.0.0.1:0",
		Proxy:       proxy,
		Establisher: &establish.Establisher{Logger: logger, Metrics: m},
		Capability:  &capability.Relay{Timeout: 5 * time.Second},
		Logger:      logger,
		Metrics:     m,
	}
}

// start runs lm in the background and returns its bound address and
// the channel its result arrives on.
func start(t *testing.T, ctx context.Context, lm *ListenMode) (string, <-chan error) {
	t.Helper()
	bound := make(chan net.Addr, 1)
	lm.OnListen = func(a net.Addr) { bound <- a }

	errCh := make(chan error, 1)
	go func() { errCh <- lm.Run(ctx) }()

	select {
	case a := <-bound:
		return a.String(), errCh
	case err := <-errCh:
		t.Fatalf("Run returned before listening: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not come up")
	}
	return "", nil
}

// attackerExchange dials addr, sends payload, half-closes and returns
// everything read back.
func attackerExchange(t *testing.T, addr, payload string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp4", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck

	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.(*net.TCPConn).CloseWrite() //nolint:errcheck
	got, _ := io.ReadAll(conn)
	return string(got)
}
