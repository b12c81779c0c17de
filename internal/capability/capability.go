// Package capability defines what happens over a relayed attacker
// session once its connections are established.  A Capability operates
// on a Session rather than raw net.Conns, which keeps it testable and
// independent of how the upstream and mirror were reached.
package capability

import (
	"context"

	"honeyrelay/internal/session"
)

// Capability handles one attacker session.  Relay is the only
// implementation today.
type Capability interface {
	// Handle runs the capability against the given session.  It blocks
	// until the session is done or the context is cancelled, and leaves
	// every connection of the session closed.
	Handle(ctx context.Context, sess *session.Session) error
}
