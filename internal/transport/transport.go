// Package transport provides the outbound connection primitive.  A
// Dialer opens one TCP connection with an optional deadline; callers
// pick the deadline per connection mode instead of duplicating connect
// logic.
package transport

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Options tunes a single Dial.
type Options struct {
	// Timeout bounds the whole connect.  Zero means no deadline beyond
	// the kernel's own TCP connect timeout.
	Timeout time.Duration

	// OnSocket, if set, runs once the socket exists and before the
	// connect is issued.
	OnSocket func()
}

// Dialer opens outbound TCP connections.
type Dialer interface {
	// Dial connects to raddr.  On error no descriptor is left open.
	Dial(ctx context.Context, raddr netip.AddrPort, opts Options) (net.Conn, error)
}
