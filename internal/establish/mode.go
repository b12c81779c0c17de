package establish

import (
	"fmt"
	"strings"
)

// Mode selects how an outbound connection is established.
type Mode uint8

const (
	// Proxy is the primary relayed session: the connect blocks until the
	// kernel completes or gives up on the handshake.
	Proxy Mode = iota + 1
	// Mirror is a best-effort duplicate connection bounded by a short
	// deadline.
	Mirror
)

// labels holds the display strings used in log lines for one mode.
type labels struct {
	action string // "proxy"
	noun   string // "server"
	title  string // "Server"
	prefix string // log line prefix
}

var modeLabels = [...]labels{
	Proxy:  {action: "proxy", noun: "server", title: "Server", prefix: "=="},
	Mirror: {action: "mirror", noun: "mirror", title: "Mirror", prefix: "<>"},
}

// unknownLabels is used when logging an unsupported mode.
var unknownLabels = labels{action: "unknown", noun: "peer", title: "Peer", prefix: "??"}

// Valid reports whether m is Proxy or Mirror.
func (m Mode) Valid() bool { return m == Proxy || m == Mirror }

func (m Mode) labels() *labels {
	if m.Valid() {
		return &modeLabels[m]
	}
	return &unknownLabels
}

func (m Mode) String() string {
	if m.Valid() {
		return modeLabels[m].action
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode accepts "proxy" or "mirror" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proxy":
		return Proxy, nil
	case "mirror":
		return Mirror, nil
	}
	return 0, fmt.Errorf("unknown connection mode %q (want proxy or mirror)", s)
}

// LoopGuard selects which modes refuse connections to 127.0.0.1.
type LoopGuard uint8

const (
	// LoopGuardMirror refuses loopback targets in mirror mode only.
	LoopGuardMirror LoopGuard = iota
	// LoopGuardAll refuses loopback targets in every mode.
	LoopGuardAll
)

func (g LoopGuard) String() string {
	if g == LoopGuardAll {
		return "all"
	}
	return "mirror"
}

// ParseLoopGuard accepts "mirror" or "all".
func ParseLoopGuard(s string) (LoopGuard, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mirror":
		return LoopGuardMirror, nil
	case "all":
		return LoopGuardAll, nil
	}
	return 0, fmt.Errorf("unknown loop guard %q (want mirror or all)", s)
}

func (g LoopGuard) covers(m Mode) bool {
	return g == LoopGuardAll || m == Mirror
}
