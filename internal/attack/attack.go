// Package attack holds the per-session record that the accept loop
// allocates for every attacker connection and that the connection
// establisher fills with the outbound four-tuple.
package attack

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Endpoint is an IPv4 address and TCP port.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// EndpointFromTCPAddr converts a kernel-reported address into an
// Endpoint.  IPv4-mapped IPv6 addresses are unmapped.
func EndpointFromTCPAddr(a *net.TCPAddr) (Endpoint, bool) {
	if a == nil {
		return Endpoint{}, false
	}
	ip, ok := netip.AddrFromSlice(a.IP)
	if !ok || a.Port < 0 || a.Port > 0xFFFF {
		return Endpoint{}, false
	}
	return Endpoint{Addr: ip.Unmap(), Port: uint16(a.Port)}, true
}

// AddrPort returns e as a netip.AddrPort.
func (e Endpoint) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(e.Addr, e.Port)
}

func (e Endpoint) String() string {
	if !e.Addr.IsValid() {
		return "-"
	}
	return e.AddrPort().String()
}

// Tuple identifies an established TCP connection.
type Tuple struct {
	Local  Endpoint
	Remote Endpoint
}

// IsZero reports whether the tuple has not been recorded yet.
func (t Tuple) IsZero() bool { return t == Tuple{} }

func (t Tuple) String() string {
	return fmt.Sprintf("%s -> %s", t.Local, t.Remote)
}

// Attack is the record for one attacker session.  It is owned by the
// accept loop; the establisher only writes the Proxy or Mirror tuple,
// once, after a successful connect.
type Attack struct {
	ID         uuid.UUID
	Started    time.Time
	ListenPort uint16
	Peer       netip.AddrPort

	Proxy  Tuple // upstream connection in proxy mode
	Mirror Tuple // best-effort duplicate connection in mirror mode
}

// New allocates a record for a connection from peer on listenPort.
func New(listenPort uint16, peer netip.AddrPort) *Attack {
	id, err := uuid.NewV4()
	if err != nil {
		// crypto/rand failure; a nil ID still keeps the record usable.
		id = uuid.Nil
	}
	return &Attack{
		ID:         id,
		Started:    time.Now(),
		ListenPort: listenPort,
		Peer:       peer,
	}
}

func (a *Attack) String() string {
	return fmt.Sprintf("attack %s from %s on port %d", a.ID, a.Peer, a.ListenPort)
}
