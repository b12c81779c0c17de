package core

import (
	"fmt"
	"net/netip"

	"honeyrelay/config"
	"honeyrelay/internal/capability"
	"honeyrelay/internal/establish"
	"honeyrelay/internal/metrics"
	"honeyrelay/internal/retry"
	"honeyrelay/internal/transport"
	"honeyrelay/util"
)

// Build constructs the appropriate Mode from a validated configuration.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	est, err := buildEstablisher(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	if cfg.Listen {
		return buildListen(cfg, est, logger, m)
	}
	return buildConnect(cfg, est, logger)
}

// ── mode builders ────────────────────────────────────────────────────

func buildConnect(cfg *config.Config, est *establish.Establisher, logger *util.Logger) (Mode, error) {
	mode, err := establish.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	host, err := netip.ParseAddr(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as an IPv4 address", cfg.Host)
	}

	return &ConnectMode{
		Establisher: est,
		Mode:        mode,
		Target:      netip.AddrPortFrom(host.Unmap(), uint16(cfg.Port)),
		ListenPort:  uint16(cfg.ListenPort),
		Logger:      logger,
	}, nil
}

func buildListen(cfg *config.Config, est *establish.Establisher, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	proxy, err := config.ParseEndpoint(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("proxy target: %w", err)
	}

	lm := &ListenMode{
		Address:     util.FormatAddr(cfg.ListenAddr, cfg.ListenPort),
		Proxy:       proxy,
		KeepOpen:    cfg.KeepOpen,
		Establisher: est,
		Capability:  &capability.Relay{Timeout: cfg.Timeout},
		Logger:      logger,
		Metrics:     m,
		GracePeriod: config.DefaultGracePeriod,
	}

	if cfg.Mirror != "" {
		mirror, err := config.ParseEndpoint(cfg.Mirror)
		if err != nil {
			return nil, fmt.Errorf("mirror target: %w", err)
		}
		lm.Mirror = mirror
		lm.Breaker = retry.NewCircuitBreaker(&retry.CircuitBreakerConfig{
			MaxFailures:  cfg.MirrorMaxFailures,
			ResetTimeout: cfg.MirrorCooldown,
			HalfOpenMax:  1,
			Counts:       retry.TargetFailure,
			OnStateChange: func(from, to retry.State) {
				logger.Warn("<> mirror %s circuit %s -> %s", mirror, from, to)
			},
		})
	}
	return lm, nil
}

// ── shared helpers ───────────────────────────────────────────────────

func buildEstablisher(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (*establish.Establisher, error) {
	guard, err := establish.ParseLoopGuard(cfg.LoopGuard)
	if err != nil {
		return nil, err
	}

	dialer := &transport.TCPDialer{}
	if cfg.SourceIP != "" {
		src, err := netip.ParseAddr(cfg.SourceIP)
		if err != nil {
			return nil, fmt.Errorf("source address: %w", err)
		}
		dialer.LocalAddr = src.Unmap()
	}

	return &establish.Establisher{
		Dialer:    dialer,
		Logger:    logger,
		Metrics:   m,
		LoopGuard: guard,
	}, nil
}
