//go:build linux

package establish

import (
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// silentTarget returns an address whose listener never answers new
// SYNs: the socket listens with a zero backlog and its single accept
// slot is already taken, so the kernel drops further handshakes.
func silentTarget(t *testing.T) netip.AddrPort {
	t.Helper()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socket: %v", err)
	}
	t.Cleanup(func() { unix.Close(fd) })

	if err := unix.Bind(fd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 2}}); err != nil {
		t.Skipf("bind 127.0.0.2: %v", err)
	}
	if err := unix.Listen(fd, 0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	addr := netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 2}), uint16(sa.(*unix.SockaddrInet4).Port))

	for i := 0; i < 8; i++ {
		c, err := net.DialTimeout("tcp4", addr.String(), 300*time.Millisecond)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return addr
			}
			t.Skipf("filling accept queue: %v", err)
		}
		t.Cleanup(func() { c.Close() })
	}
	t.Skip("accept queue never filled")
	return netip.AddrPort{}
}
