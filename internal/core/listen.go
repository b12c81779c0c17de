package core

import (
	"context"
	"net"
	"net/netip"
	"sync"
	"time"

	"honeyrelay/internal/attack"
	"honeyrelay/internal/capability"
	"honeyrelay/internal/errors"
	"honeyrelay/internal/establish"
	"honeyrelay/internal/metrics"
	"honeyrelay/internal/retry"
	"honeyrelay/internal/session"
	"honeyrelay/util"
)

// ListenMode accepts attacker connections and relays each one to the
// proxy target, optionally mirroring the attacker's bytes to a second
// target.  With KeepOpen=true it spawns a goroutine per connection;
// otherwise it handles one connection and returns.
type ListenMode struct {
	Address     string         // "[addr]:port"
	Proxy       netip.AddrPort // required
	Mirror      netip.AddrPort // zero value disables mirroring
	KeepOpen    bool
	Establisher *establish.Establisher
	Breaker     *retry.CircuitBreaker // guards Mirror; nil means no breaker
	Backoff     *retry.Backoff        // bind retries; nil means retry.ListenBackoff
	Capability  capability.Capability
	Logger      *util.Logger
	Metrics     *metrics.Collector

	// GracePeriod is how long running sessions may continue after ctx
	// is cancelled; zero ends them at once.
	GracePeriod time.Duration

	// OnListen, if set, is called with the bound address before the
	// first Accept.
	OnListen func(net.Addr)
}

// Run binds the listener and dispatches accepted connections until ctx
// is cancelled.  Running sessions get GracePeriod to finish on their
// own, and Run waits for them before returning.
func (m *ListenMode) Run(ctx context.Context) error {
	ln, err := m.listen(ctx)
	if err != nil {
		return err
	}
	defer ln.Close()

	laddr, _ := util.AddrPortOf(ln.Addr())
	listenPort := laddr.Port()
	m.Logger.Verbose("listening on %s (tcp), proxy %s", ln.Addr(), m.Proxy)
	if m.Mirror.IsValid() {
		m.Logger.Verbose("mirroring attacker traffic to %s", m.Mirror)
	}
	if m.OnListen != nil {
		m.OnListen(ln.Addr())
	}

	sessCtx, cancelSessions := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelSessions()

	// Shut the listener down when the context expires; sessions follow
	// after the grace period.
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		time.AfterFunc(m.GracePeriod, cancelSessions)
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			nerr := errors.Wrap("accept", ln.Addr().String(), err)
			if nerr.Retryable {
				m.Metrics.RecordError(nerr.Error())
				m.Logger.Warn("%v", nerr)
				continue
			}
			return nerr
		}

		if !m.KeepOpen {
			return m.serveConn(sessCtx, conn, listenPort)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.serveConn(sessCtx, conn, listenPort) //nolint:errcheck
		}()
	}
}

func (m *ListenMode) listen(ctx context.Context) (net.Listener, error) {
	b := m.Backoff
	if b == nil {
		b = retry.ListenBackoff()
	}

	var ln net.Listener
	err := b.Do(ctx, func(attempt int) error {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp4", m.Address)
		if err != nil {
			if retry.IsAddrInUse(err) {
				m.Logger.Debug("listen attempt %d on %s: %v", attempt, m.Address, err)
			}
			return err
		}
		ln = l
		return nil
	})
	if err != nil {
		return nil, errors.Wrap("listen", m.Address, err)
	}
	return ln, nil
}

// serveConn runs one attacker session: proxy connect, optional mirror
// connect, then the capability.  The attacker is dropped when the proxy
// target cannot be reached.
func (m *ListenMode) serveConn(ctx context.Context, conn net.Conn, listenPort uint16) error {
	peer, _ := util.AddrPortOf(conn.RemoteAddr())
	att := attack.New(listenPort, peer)
	m.Logger.Verbose("== %d  connection from %s (attack %s)", listenPort, peer, att.ID)

	upstream, err := m.Establisher.Connect(ctx, establish.Proxy, m.Proxy.Addr(), listenPort, m.Proxy.Port(), att)
	if err != nil {
		conn.Close()
		m.Logger.Info("== %d  dropping %s: %v", listenPort, peer, err)
		return err
	}

	sess := session.New(att, conn, upstream, m.Logger, m.Metrics)
	if m.Mirror.IsValid() {
		if mc := m.connectMirror(ctx, att, listenPort); mc != nil {
			sess.Mirror = mc
		}
	}

	m.Logger.Info("== %d  %s relayed via %s", listenPort, peer, att.Proxy)
	if !att.Mirror.IsZero() {
		m.Logger.Info("<> %d  %s mirrored via %s", listenPort, peer, att.Mirror)
	}
	return m.Capability.Handle(ctx, sess)
}

// connectMirror opens the mirror connection through the breaker.  A
// mirror that cannot be reached only costs the session its copy.
func (m *ListenMode) connectMirror(ctx context.Context, att *attack.Attack, listenPort uint16) net.Conn {
	var mc net.Conn
	dial := func() error {
		c, err := m.Establisher.Connect(ctx, establish.Mirror, m.Mirror.Addr(), listenPort, m.Mirror.Port(), att)
		mc = c
		return err
	}

	var err error
	if m.Breaker != nil {
		err = m.Breaker.Execute(dial)
	} else {
		err = dial()
	}
	if err != nil {
		if errors.Is(err, errors.ErrCircuitOpen) {
			m.Logger.Debug("<> %d  mirror skipped: %v", listenPort, err)
		} else {
			m.Logger.Verbose("<> %d  mirror unavailable: %v", listenPort, err)
		}
		return nil
	}
	return mc
}
