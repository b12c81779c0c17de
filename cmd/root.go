// Package cmd wires up the CLI flags, layers configuration sources and
// dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"honeyrelay/config"
	"honeyrelay/internal/core"
	"honeyrelay/internal/metrics"
	"honeyrelay/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X honeyrelay/cmd.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

// stdout receives --version, --dry-run and one-shot connect output.
var stdout io.Writer = os.Stdout //nolint:gochecknoglobals

// Execute parses args and runs the appropriate honeyrelay mode.
func Execute(ctx context.Context, args []string) error {
	flags := &config.Config{}
	fs := flag.NewFlagSet("honeyrelay", flag.ContinueOnError)

	// ── listener ─────────────────────────────────────────────────
	fs.BoolVarP(&flags.Listen, "listen", "l", false, "Listen for attackers and relay them")
	fs.IntVarP(&flags.ListenPort, "port", "p", 0, "Attacker-facing port")
	fs.StringVar(&flags.ListenAddr, "listen-addr", "", "Bind address for -l (default all IPv4 interfaces)")
	fs.BoolVarP(&flags.KeepOpen, "keep-open", "k", false, "Accept multiple attackers (with -l)")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Session time limit in seconds")

	// ── outbound ─────────────────────────────────────────────────
	fs.StringVarP(&flags.Mode, "mode", "m", "", "One-shot connection mode: proxy or mirror")
	fs.StringVar(&flags.Proxy, "proxy", "", "Proxy target a.b.c.d:port (with -l)")
	fs.StringVar(&flags.Mirror, "mirror", "", "Mirror target a.b.c.d:port (with -l)")
	fs.StringVar(&flags.LoopGuard, "loop-guard", "", "Refuse 127.0.0.1 targets for: mirror (default) or all")
	fs.StringVarP(&flags.SourceIP, "source", "s", "", "Source IPv4 address for outbound connections")
	fs.IntVar(&flags.MirrorMaxFailures, "mirror-max-failures", 0, "Mirror failures before the mirror is paused")
	fs.DurationVar(&flags.MirrorCooldown, "mirror-cooldown", 0, "How long a failing mirror stays paused")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	fs.CountVarP(&flags.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Validate configuration and exit")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "honeyrelay %s\n", version)
		return nil
	}
	if timeoutSec > 0 {
		flags.Timeout = time.Duration(timeoutSec) * time.Second
	}

	// ── layer sources: file < env < flags ───────────────────────
	cfg := &config.Config{}
	path := flags.ConfigFile
	if path == "" {
		path = os.Getenv("HONEYRELAY_CONFIG")
	}
	if path != "" {
		if err := config.LoadFile(path, cfg); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	overlayFlags(cfg, flags, fs)

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	config.ApplyDefaults(cfg)

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.StampUnlessTerminal(os.Stderr)

	if cfg.DryRun {
		printSummary(cfg)
		return nil
	}

	// ── build and run ────────────────────────────────────────────
	m := metrics.New()
	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	if cm, ok := mode.(*core.ConnectMode); ok {
		cm.Stdout = stdout
	}

	err = mode.Run(ctx)
	if cfg.Listen {
		logger.Verbose("metrics: %s", m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

// overlayFlags copies every flag the user actually set from src to dst.
func overlayFlags(dst, src *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			dst.Listen = src.Listen
		case "port":
			dst.ListenPort = src.ListenPort
		case "listen-addr":
			dst.ListenAddr = src.ListenAddr
		case "keep-open":
			dst.KeepOpen = src.KeepOpen
		case "timeout":
			dst.Timeout = src.Timeout
		case "mode":
			dst.Mode = src.Mode
		case "proxy":
			dst.Proxy = src.Proxy
		case "mirror":
			dst.Mirror = src.Mirror
		case "loop-guard":
			dst.LoopGuard = src.LoopGuard
		case "source":
			dst.SourceIP = src.SourceIP
		case "mirror-max-failures":
			dst.MirrorMaxFailures = src.MirrorMaxFailures
		case "mirror-cooldown":
			dst.MirrorCooldown = src.MirrorCooldown
		case "config":
			dst.ConfigFile = src.ConfigFile
		case "verbose":
			dst.Verbose = src.Verbose
		case "dry-run":
			dst.DryRun = src.DryRun
		}
	})
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Listen {
		if len(remaining) > 0 {
			return fmt.Errorf("listen mode takes no positional arguments (use --proxy and --mirror)")
		}
		return nil
	}

	// One-shot connect: host port
	switch len(remaining) {
	case 0:
		if cfg.Host == "" {
			return fmt.Errorf("target address required (use --help for usage)")
		}
		return nil
	case 1:
		return fmt.Errorf("port required")
	case 2:
	default:
		return fmt.Errorf("too many arguments: want <host> <port>")
	}

	port, err := config.ParsePort(remaining[1])
	if err != nil {
		return fmt.Errorf("port: %w", err)
	}
	cfg.Host = remaining[0]
	cfg.Port = port
	return nil
}

func printSummary(cfg *config.Config) {
	if cfg.Listen {
		fmt.Fprintf(stdout, "listen %s:%d proxy %s", cfg.ListenAddr, cfg.ListenPort, cfg.Proxy)
		if cfg.Mirror != "" {
			fmt.Fprintf(stdout, " mirror %s", cfg.Mirror)
		}
		fmt.Fprintf(stdout, " loop-guard %s\n", cfg.LoopGuard)
		return
	}
	fmt.Fprintf(stdout, "%s %s:%d loop-guard %s\n", cfg.Mode, cfg.Host, cfg.Port, cfg.LoopGuard)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `honeyrelay v%s

Relays attacker connections from a honeypot port to a real service,
optionally mirroring the attacker's traffic to a collector.

Usage:
  honeyrelay -l -p <port> --proxy <ip:port> [--mirror <ip:port>]   Relay
  honeyrelay -m proxy|mirror [options] <ip> <port>                 Connect once

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  honeyrelay -lk -p 22 --proxy 10.0.0.5:22 --mirror 10.0.0.9:2222
  honeyrelay -m mirror -v 10.0.0.9 2222
  honeyrelay --config /etc/honeyrelay.yaml -lk

Environment:
  HONEYRELAY_* variables (e.g. HONEYRELAY_PROXY) override the config
  file; flags override both.
`)
}
