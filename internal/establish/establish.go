// Package establish opens the outbound side of a relayed attacker
// session.  For every accepted attacker connection the accept loop asks
// the Establisher for a connection to the configured target, either as
// the primary proxied session or as a best-effort mirror, and gets back
// the connected socket together with its kernel-reported four-tuple.
package establish

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"honeyrelay/config"
	"honeyrelay/internal/attack"
	"honeyrelay/internal/errors"
	"honeyrelay/internal/metrics"
	"honeyrelay/internal/transport"
)

// Sink receives the establisher's log lines.  *util.Logger satisfies it.
type Sink interface {
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

type nopSink struct{}

func (nopSink) Debug(string, ...interface{}) {}
func (nopSink) Warn(string, ...interface{})  {}
func (nopSink) Error(string, ...interface{}) {}

var loopback = netip.AddrFrom4([4]byte{127, 0, 0, 1})

// Request describes one outbound connection.
type Request struct {
	Mode       Mode
	Remote     netip.AddrPort // target; must be IPv4
	ListenPort uint16         // attacker-facing port, used for log correlation only
}

// Result is a successful establishment.  The caller owns Conn.
type Result struct {
	Conn  net.Conn
	Tuple attack.Tuple
}

// Establisher opens outbound connections in proxy or mirror mode.  It
// keeps no per-call state and is safe for concurrent use.
type Establisher struct {
	Dialer    transport.Dialer   // nil means a plain TCPDialer
	Logger    Sink               // nil discards log lines
	Metrics   *metrics.Collector // nil disables metrics
	LoopGuard LoopGuard

	// MirrorTimeout bounds mirror-mode connects; zero means
	// config.DefaultMirrorTimeout.
	MirrorTimeout time.Duration
}

// Connect establishes a connection to remoteAddr:remotePort and records
// its tuple in att (Proxy or Mirror field, by mode).  listenPort only
// correlates log lines with the attacker-facing port.
func (e *Establisher) Connect(ctx context.Context, mode Mode, remoteAddr netip.Addr,
	listenPort, remotePort uint16, att *attack.Attack,
) (net.Conn, error) {
	req := Request{
		Mode:       mode,
		Remote:     netip.AddrPortFrom(remoteAddr, remotePort),
		ListenPort: listenPort,
	}
	if att == nil {
		e.log().Error("%s %d  error - no attack record to fill", mode.labels().prefix, listenPort)
		return nil, e.fail(req, errors.KindNoAttackRecord, nil)
	}

	res, err := e.Establish(ctx, req)
	if err != nil {
		return nil, err
	}

	if mode == Mirror {
		att.Mirror = res.Tuple
	} else {
		att.Proxy = res.Tuple
	}
	return res.Conn, nil
}

// Establish opens the connection described by req.  On error no socket
// is left open and the returned error is an *errors.ConnectError.
func (e *Establisher) Establish(ctx context.Context, req Request) (*Result, error) {
	log := e.log()
	lb := req.Mode.labels()
	lport := req.ListenPort

	if !req.Mode.Valid() {
		log.Error("%s %d  error - mode %d for connection handling is not supported",
			lb.prefix, lport, uint8(req.Mode))
		return nil, e.fail(req, errors.KindUnsupportedMode, nil)
	}
	e.Metrics.EstablishStarted(lb.action)

	remote := req.Remote.Addr().Unmap()
	target := netip.AddrPortFrom(remote, req.Remote.Port())

	if remote == loopback && e.LoopGuard.covers(req.Mode) {
		log.Warn("%s %d  warning - connection to %s suppressed for loop prevention",
			lb.prefix, lport, target)
		return nil, e.fail(req, errors.KindLoopPrevented, nil)
	}
	if !remote.Is4() {
		log.Error("%s %d  error - %s target %s is not an IPv4 address",
			lb.prefix, lport, lb.noun, target)
		return nil, e.fail(req, errors.KindConnectFailed, fmt.Errorf("%s is not an IPv4 address", remote))
	}

	opts := transport.Options{
		OnSocket: func() {
			log.Debug("%s %d  client socket for %s connection created", lb.prefix, lport, lb.action)
		},
	}
	log.Debug("%s %d  creating client socket for %s connection", lb.prefix, lport, lb.action)
	log.Debug("%s %d  establishing %s connection to %s", lb.prefix, lport, lb.action, target)
	if req.Mode == Mirror {
		opts.Timeout = e.mirrorTimeout()
		log.Debug("%s %d  non-blocking, short-timeout connect to %s (%s)",
			lb.prefix, lport, target, opts.Timeout)
	}

	conn, err := e.dialer().Dial(ctx, target, opts)
	if err != nil {
		reason := transport.Reason(err)
		switch transport.Classify(err) {
		case transport.FailureSocket:
			log.Error("%s %d  error - unable to create client socket for %s connection: %s",
				lb.prefix, lport, lb.action, reason)
			return nil, e.fail(req, errors.KindSocketCreateFailed, err)
		case transport.FailureTimeout:
			log.Debug("%s %d  error - %s connection to %s timed out",
				lb.prefix, lport, lb.action, target)
			return nil, e.fail(req, errors.KindConnectTimeout, err)
		default:
			log.Debug("%s %d  error - unable to establish %s connection to %s: %s",
				lb.prefix, lport, lb.action, target, reason)
			return nil, e.fail(req, errors.KindConnectFailed, err)
		}
	}

	local, ok := localEndpoint(conn)
	if !ok {
		conn.Close()
		log.Error("%s %d  error - unable to get local address from %s socket",
			lb.prefix, lport, lb.action)
		return nil, e.fail(req, errors.KindLocalAddressUnavailable, nil)
	}

	tuple := attack.Tuple{
		Local:  local,
		Remote: attack.Endpoint{Addr: remote, Port: req.Remote.Port()},
	}
	log.Debug("%s %d  %s connection established: %s", lb.prefix, lport, lb.title, tuple)
	e.Metrics.EstablishSucceeded(lb.action)

	return &Result{Conn: conn, Tuple: tuple}, nil
}

// ── helpers ──────────────────────────────────────────────────────────

func (e *Establisher) fail(req Request, kind errors.Kind, cause error) error {
	ce := &errors.ConnectError{
		Kind:       kind,
		Mode:       req.Mode.String(),
		ListenPort: req.ListenPort,
		Err:        cause,
	}
	if req.Remote.IsValid() {
		ce.Target = netip.AddrPortFrom(req.Remote.Addr().Unmap(), req.Remote.Port()).String()
	}
	e.Metrics.EstablishFailed(kind.String(), ce.Error())
	return ce
}

func localEndpoint(conn net.Conn) (attack.Endpoint, bool) {
	addr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return attack.Endpoint{}, false
	}
	ep, ok := attack.EndpointFromTCPAddr(addr)
	if !ok || !ep.Addr.Is4() || ep.Port == 0 {
		return attack.Endpoint{}, false
	}
	return ep, true
}

func (e *Establisher) log() Sink {
	if e.Logger != nil {
		return e.Logger
	}
	return nopSink{}
}

func (e *Establisher) dialer() transport.Dialer {
	if e.Dialer != nil {
		return e.Dialer
	}
	return &transport.TCPDialer{}
}

func (e *Establisher) mirrorTimeout() time.Duration {
	if e.MirrorTimeout > 0 {
		return e.MirrorTimeout
	}
	return config.DefaultMirrorTimeout
}
