package capability

import (
	"context"
	"io"
	"time"

	"honeyrelay/internal/session"
	"honeyrelay/util"
)

// Relay pipes the attacker to the upstream service and back, teeing the
// attacker's bytes to the mirror when one is attached.
type Relay struct {
	// Timeout caps the whole session; zero means no limit.
	Timeout time.Duration
}

// Handle runs the relay until the upstream finishes, either side fails,
// the timeout expires or ctx is cancelled.  A failing mirror is dropped
// and never ends the session.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	defer sess.Close()

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	log := sess.Logger
	if log == nil {
		log = util.NewLogger(0)
	}
	port := listenPort(sess)

	sess.Metrics.RelayOpened()
	defer sess.Metrics.RelayClosed()

	var mirror io.Writer
	if sess.Mirror != nil {
		mirror = sess.Mirror
	}
	stats, err := util.Pipe(ctx, sess.Attacker, sess.Upstream, mirror)

	sess.Metrics.BytesFromAttacker(stats.FromAttacker)
	sess.Metrics.BytesToAttacker(stats.ToAttacker)
	sess.Metrics.BytesMirrored(stats.Mirrored)

	if stats.MirrorErr != nil {
		log.Verbose("<> %d  mirror dropped after %d bytes: %v", port, stats.Mirrored, stats.MirrorErr)
		sess.DropMirror()
	}
	log.Verbose("== %d  relay closed: %d bytes from attacker, %d bytes to attacker",
		port, stats.FromAttacker, stats.ToAttacker)

	if err != nil {
		sess.Metrics.RecordError(err.Error())
		log.Debug("== %d  relay error: %v", port, err)
	}
	return err
}

func listenPort(sess *session.Session) uint16 {
	if sess.Attack == nil {
		return 0
	}
	return sess.Attack.ListenPort
}
