package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"syscall"
	"testing"
	"time"
)

func listen(t *testing.T) (net.Listener, netip.AddrPort) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().(*net.TCPAddr).AddrPort()
}

// TestTCPDialer_Connect verifies that TCPDialer can reach a local
// TCP server and exchange data.
func TestTCPDialer_Connect(t *testing.T) {
	ln, addr := listen(t)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("hello from server\n")) //nolint:errcheck
	}()

	d := &TCPDialer{}
	conn, err := d.Dial(context.Background(), addr, Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello from server\n" {
		t.Errorf("got %q, want %q", got, "hello from server\n")
	}
}

// TestTCPDialer_OnSocket verifies the hook fires exactly once per dial.
func TestTCPDialer_OnSocket(t *testing.T) {
	_, addr := listen(t)

	calls := 0
	d := &TCPDialer{}
	conn, err := d.Dial(context.Background(), addr, Options{OnSocket: func() { calls++ }})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	if calls != 1 {
		t.Errorf("OnSocket called %d times, want 1", calls)
	}
}

// TestTCPDialer_LocalAddr verifies the source address is pinned.
func TestTCPDialer_LocalAddr(t *testing.T) {
	_, addr := listen(t)

	d := &TCPDialer{LocalAddr: netip.MustParseAddr("127.0.0.1")}
	conn, err := d.Dial(context.Background(), addr, Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.TCPAddr)
	if !local.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("local = %s", local)
	}
}

// TestTCPDialer_Refused verifies a closed port classifies as a connect
// failure with the kernel's reason.
func TestTCPDialer_Refused(t *testing.T) {
	ln, addr := listen(t)
	ln.Close()

	d := &TCPDialer{}
	_, err := d.Dial(context.Background(), addr, Options{Timeout: 2 * time.Second})
	if err == nil {
		t.Fatal("expected error dialing a closed port")
	}
	if got := Classify(err); got != FailureConnect {
		t.Errorf("Classify = %d, want FailureConnect", got)
	}
	if got := Reason(err); got != syscall.ECONNREFUSED.Error() {
		t.Errorf("Reason = %q", got)
	}
}

// TestTCPDialer_ContextCancel verifies that a cancelled context stops the dial.
func TestTCPDialer_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &TCPDialer{}
	_, err := d.Dial(ctx, netip.MustParseAddrPort("127.0.0.1:1"), Options{Timeout: 5 * time.Second})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Failure
	}{
		{"nil", nil, FailureNone},
		{
			"socket",
			&net.OpError{Op: "dial", Net: "tcp4", Err: os.NewSyscallError("socket", syscall.EMFILE)},
			FailureSocket,
		},
		{
			"refused",
			&net.OpError{Op: "dial", Net: "tcp4", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)},
			FailureConnect,
		},
		{
			"kernel timeout",
			&net.OpError{Op: "dial", Net: "tcp4", Err: os.NewSyscallError("connect", syscall.ETIMEDOUT)},
			FailureConnect,
		},
		{"deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), FailureTimeout},
		{"os deadline", &net.OpError{Op: "dial", Err: os.ErrDeadlineExceeded}, FailureTimeout},
		{"other", io.ErrUnexpectedEOF, FailureConnect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestReason(t *testing.T) {
	err := &net.OpError{Op: "dial", Net: "tcp4", Err: os.NewSyscallError("connect", syscall.EHOSTUNREACH)}
	if got := Reason(err); got != syscall.EHOSTUNREACH.Error() {
		t.Errorf("got %q", got)
	}
	if got := Reason(io.EOF); got != "EOF" {
		t.Errorf("got %q", got)
	}
	if Reason(nil) != "" {
		t.Error("nil should have empty reason")
	}
}
