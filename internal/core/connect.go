package core

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"

	"honeyrelay/internal/attack"
	"honeyrelay/internal/establish"
	"honeyrelay/util"
)

// ConnectMode establishes a single outbound connection, prints its
// four-tuple and closes it.  It exercises the same path the listener
// uses per attacker, which makes it the tool for checking that a proxy
// or mirror target is reachable from this host.
type ConnectMode struct {
	Establisher *establish.Establisher
	Mode        establish.Mode
	Target      netip.AddrPort
	ListenPort  uint16 // only tags log lines
	Logger      *util.Logger

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, reports the tuple and closes the connection.
func (m *ConnectMode) Run(ctx context.Context) error {
	att := attack.New(m.ListenPort, netip.AddrPort{})

	m.Logger.Verbose("connecting to %s (%s)", m.Target, m.Mode)
	conn, err := m.Establisher.Connect(ctx, m.Mode, m.Target.Addr(), m.ListenPort, m.Target.Port(), att)
	if err != nil {
		return err
	}
	defer conn.Close()

	tuple := att.Proxy
	if m.Mode == establish.Mirror {
		tuple = att.Mirror
	}
	fmt.Fprintf(m.stdout(), "%s %s\n", m.Mode, tuple)
	return nil
}
