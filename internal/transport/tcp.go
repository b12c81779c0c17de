package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"syscall"
)

// TCPDialer establishes plain IPv4 TCP connections.
type TCPDialer struct {
	// LocalAddr optionally pins the source address (zero = kernel's choice).
	LocalAddr netip.Addr
}

// Dial connects to raddr over tcp4.
func (d *TCPDialer) Dial(ctx context.Context, raddr netip.AddrPort, opts Options) (net.Conn, error) {
	dialer := net.Dialer{Timeout: opts.Timeout}

	if d.LocalAddr.IsValid() {
		dialer.LocalAddr = net.TCPAddrFromAddrPort(netip.AddrPortFrom(d.LocalAddr, 0))
	}
	if opts.OnSocket != nil {
		dialer.Control = func(string, string, syscall.RawConn) error {
			opts.OnSocket()
			return nil
		}
	}

	return dialer.DialContext(ctx, "tcp4", raddr.String())
}

// ── Failure classification ───────────────────────────────────────────

// Failure is the stage at which a Dial failed.
type Failure int

const (
	FailureNone    Failure = iota
	FailureSocket          // no descriptor could be allocated
	FailureTimeout         // the deadline elapsed before the handshake finished
	FailureConnect         // the handshake was refused or otherwise failed
)

// Classify reports which stage a Dial error came from.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) && sysErr.Syscall == "socket" {
		return FailureSocket
	}
	// The kernel giving up on the handshake is a failed connect, not an
	// elapsed deadline, even though ETIMEDOUT reports Timeout() == true.
	if errors.Is(err, syscall.ETIMEDOUT) {
		return FailureConnect
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureConnect
}

// Reason returns the innermost error text, e.g. "connection refused",
// without the "dial tcp4 ..." wrapping.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		return sysErr.Err.Error()
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	return err.Error()
}
