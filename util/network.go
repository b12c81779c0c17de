package util

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// AddrPortOf returns the IPv4 address and port of a TCP net.Addr, with
// IPv4-mapped addresses unmapped.  ok is false for other address types.
func AddrPortOf(a net.Addr) (netip.AddrPort, bool) {
	ta, isTCP := a.(*net.TCPAddr)
	if !isTCP || ta == nil {
		return netip.AddrPort{}, false
	}
	ap := ta.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), ap.IsValid()
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
