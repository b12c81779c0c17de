package util

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"honeyrelay/config"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// PipeStats counts the bytes moved by one Pipe call.
type PipeStats struct {
	FromAttacker int64 // attacker → upstream
	ToAttacker   int64 // upstream → attacker
	Mirrored     int64 // attacker → mirror
	MirrorErr    error // first mirror write failure, if any
}

// Pipe relays bytes between an attacker connection and its upstream
// until the upstream finishes, either side fails, or ctx is cancelled.
// Bytes read from the attacker are also written to mirror when it is
// non-nil; a failing mirror is dropped without disturbing the relay.
// Both connections are closed when Pipe returns.
func Pipe(ctx context.Context, attacker, upstream net.Conn, mirror io.Writer) (PipeStats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		stats PipeStats
		wg    sync.WaitGroup
		tee   *mirrorWriter
	)
	if mirror != nil {
		tee = &mirrorWriter{w: mirror}
	}
	errCh := make(chan error, 2)

	// upstream → attacker
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := copyTee(attacker, upstream, nil)
		stats.ToAttacker = n
		errCh <- err
		cancel()
	}()

	// attacker → upstream (+ mirror)
	wg.Add(1)
	go func() {
		defer wg.Done()
		n, err := copyTee(upstream, attacker, tee)
		stats.FromAttacker = n
		// Half-close so the upstream sees EOF but can still answer.
		if tc, ok := upstream.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
		errCh <- err
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	attacker.Close()
	upstream.Close()
	wg.Wait()
	close(errCh)

	if tee != nil {
		stats.Mirrored, stats.MirrorErr = tee.n, tee.err
	}
	for err := range errCh {
		if err != nil && !isHarmless(err) {
			return stats, err
		}
	}
	return stats, nil
}

// copyTee copies src to dst with a pooled buffer, duplicating every
// chunk into mirror.
func copyTee(dst io.Writer, src io.Reader, mirror *mirrorWriter) (int64, error) {
	bufp := GetBuf()
	defer PutBuf(bufp)
	buf := *bufp

	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			mirror.write(buf[:nr])
		}
		if rerr != nil {
			if rerr == io.EOF {
				return written, nil
			}
			return written, rerr
		}
	}
}

// mirrorWriter forwards writes until the first failure and then
// silently discards.  Writes are bounded by the mirror deadline when
// the underlying writer supports it.
type mirrorWriter struct {
	w   io.Writer
	n   int64
	err error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

func (m *mirrorWriter) write(p []byte) {
	if m == nil || m.err != nil {
		return
	}
	if d, ok := m.w.(writeDeadliner); ok {
		d.SetWriteDeadline(time.Now().Add(config.DefaultMirrorTimeout)) //nolint:errcheck
	}
	n, err := m.w.Write(p)
	m.n += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	m.err = err
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
