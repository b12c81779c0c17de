// Package config defines the runtime configuration for honeyrelay and
// provides helpers for parsing target endpoints.
package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"honeyrelay/internal/errors"
)

// Config holds every tuneable for a honeyrelay process.
type Config struct {
	// ── Listener ─────────────────────────────────────────────────────
	Listen     bool
	ListenAddr string // bind address for -l (default all interfaces)
	ListenPort int    // -p: attacker-facing port
	KeepOpen   bool
	Timeout    time.Duration // time limit per relayed session (0 = none)

	// ── Outbound ─────────────────────────────────────────────────────
	Mode      string // one-shot mode: "proxy" or "mirror"
	Host      string // one-shot target host (IPv4 literal)
	Port      int    // one-shot target port
	Proxy     string // -l: proxy target "a.b.c.d:port"
	Mirror    string // -l: optional mirror target "a.b.c.d:port"
	LoopGuard string // "mirror" (default) or "all"
	SourceIP  string // optional source address for outbound sockets

	// ── Mirror breaker ───────────────────────────────────────────────
	MirrorMaxFailures int
	MirrorCooldown    time.Duration

	// ── Output ───────────────────────────────────────────────────────
	ConfigFile string
	Verbose    int
	DryRun     bool
}

// ParseEndpoint parses "a.b.c.d:port" into an IPv4 address and port.
func ParseEndpoint(s string) (netip.AddrPort, error) {
	ap, err := netip.ParseAddrPort(strings.TrimSpace(s))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid endpoint %q: expected a.b.c.d:port", s)
	}
	if !ap.Addr().Unmap().Is4() {
		return netip.AddrPort{}, fmt.Errorf("endpoint %q is not IPv4", s)
	}
	if ap.Port() == 0 {
		return netip.AddrPort{}, fmt.Errorf("endpoint %q has port 0", s)
	}
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// ParsePort accepts a decimal port in 1-65535.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return &errors.ConfigError{Field: "port", Value: c.ListenPort, Message: "out of range 0-65535"}
	}

	switch strings.ToLower(c.LoopGuard) {
	case "", "mirror", "all":
	default:
		return &errors.ConfigError{
			Field: "loop-guard", Value: c.LoopGuard,
			Message: "unknown loop guard",
			Hint:    "use mirror (refuse 127.0.0.1 for mirrors only) or all",
		}
	}

	if c.SourceIP != "" {
		ip, err := netip.ParseAddr(c.SourceIP)
		if err != nil || !ip.Unmap().Is4() {
			return &errors.ConfigError{Field: "source", Value: c.SourceIP, Message: "not an IPv4 address"}
		}
	}

	if c.Listen {
		return c.validateListen()
	}
	return c.validateConnect()
}

func (c *Config) validateListen() error {
	if c.ListenPort == 0 {
		return &errors.ConfigError{
			Field:   "port",
			Message: "listen mode requires a port",
			Hint:    "add -p <port>",
		}
	}
	if c.Proxy == "" {
		return &errors.ConfigError{
			Field:   "proxy",
			Message: "listen mode requires a proxy target",
			Hint:    "add --proxy a.b.c.d:port",
		}
	}
	if _, err := ParseEndpoint(c.Proxy); err != nil {
		return &errors.ConfigError{Field: "proxy", Value: c.Proxy, Message: err.Error()}
	}
	if c.Mirror != "" {
		if _, err := ParseEndpoint(c.Mirror); err != nil {
			return &errors.ConfigError{Field: "mirror", Value: c.Mirror, Message: err.Error()}
		}
	}
	if c.MirrorMaxFailures < 0 {
		return &errors.ConfigError{Field: "mirror-max-failures", Value: c.MirrorMaxFailures, Message: "must not be negative"}
	}
	return nil
}

func (c *Config) validateConnect() error {
	switch strings.ToLower(c.Mode) {
	case "proxy", "mirror":
	case "":
		return &errors.ConfigError{Field: "mode", Message: "connection mode is required", Hint: "use -m proxy or -m mirror"}
	default:
		return &errors.ConfigError{Field: "mode", Value: c.Mode, Message: "unsupported connection mode", Hint: "use proxy or mirror"}
	}
	if c.Host == "" {
		return &errors.ConfigError{Field: "host", Message: "target address is required (use --help for usage)"}
	}
	if ip, err := netip.ParseAddr(c.Host); err != nil || !ip.Unmap().Is4() {
		return &errors.ConfigError{Field: "host", Value: c.Host, Message: "target must be an IPv4 address"}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &errors.ConfigError{Field: "port", Value: c.Port, Message: "destination port is required (1-65535)"}
	}
	return nil
}
