// Package session represents one relayed attacker connection: the
// attack record plus the attacker, upstream and optional mirror sockets
// that belong to it.
//
// Capabilities operate on sessions rather than raw connections, so the
// accept loop owns establishment and a capability only moves bytes.
package session

import (
	"net"

	"honeyrelay/internal/attack"
	"honeyrelay/internal/metrics"
	"honeyrelay/util"
)

// Session encapsulates the runtime context for a single attacker.
type Session struct {
	Attack   *attack.Attack
	Attacker net.Conn // accepted connection
	Upstream net.Conn // proxy-mode connection to the real service
	Mirror   net.Conn // mirror-mode connection; nil when not mirroring
	Logger   *util.Logger
	Metrics  *metrics.Collector
}

// New creates a Session for an attacker whose upstream is already
// connected.  Mirror may be attached afterwards.
func New(att *attack.Attack, attacker, upstream net.Conn, logger *util.Logger, m *metrics.Collector) *Session {
	return &Session{
		Attack:   att,
		Attacker: attacker,
		Upstream: upstream,
		Logger:   logger,
		Metrics:  m,
	}
}

// DropMirror closes and detaches the mirror connection, if any.
func (s *Session) DropMirror() {
	if s.Mirror == nil {
		return
	}
	s.Mirror.Close()
	s.Mirror = nil
	s.Metrics.MirrorDropped()
}

// Close closes every connection of the session.
func (s *Session) Close() {
	for _, c := range []net.Conn{s.Attacker, s.Upstream, s.Mirror} {
		if c != nil {
			c.Close()
		}
	}
}
