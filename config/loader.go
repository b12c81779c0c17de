package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the HONEYRELAY_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if envBool("HONEYRELAY_LISTEN") {
		cfg.Listen = true
	}
	if v := os.Getenv("HONEYRELAY_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := envInt("HONEYRELAY_PORT"); v > 0 {
		cfg.ListenPort = v
	}
	if envBool("HONEYRELAY_KEEP_OPEN") {
		cfg.KeepOpen = true
	}
	if v := envInt("HONEYRELAY_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}

	// Outbound
	if v := os.Getenv("HONEYRELAY_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("HONEYRELAY_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HONEYRELAY_MIRROR"); v != "" {
		cfg.Mirror = v
	}
	if v := os.Getenv("HONEYRELAY_LOOP_GUARD"); v != "" {
		cfg.LoopGuard = v
	}
	if v := os.Getenv("HONEYRELAY_SOURCE"); v != "" {
		cfg.SourceIP = v
	}

	// Mirror breaker
	if v := envInt("HONEYRELAY_MIRROR_MAX_FAILURES"); v > 0 {
		cfg.MirrorMaxFailures = v
	}
	if v := envInt("HONEYRELAY_MIRROR_COOLDOWN"); v > 0 {
		cfg.MirrorCooldown = secondsDuration(v)
	}

	// Output
	if v := os.Getenv("HONEYRELAY_CONFIG"); v != "" {
		cfg.ConfigFile = v
	}
	if v := envInt("HONEYRELAY_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
}

// ApplyDefaults fills zero-valued tuneables.
func ApplyDefaults(cfg *Config) {
	if cfg.LoopGuard == "" {
		cfg.LoopGuard = DefaultLoopGuard
	}
	if cfg.MirrorMaxFailures == 0 {
		cfg.MirrorMaxFailures = DefaultMirrorMaxFailures
	}
	if cfg.MirrorCooldown == 0 {
		cfg.MirrorCooldown = DefaultMirrorCooldown
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
