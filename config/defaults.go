package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultMirrorTimeout bounds a mirror-mode connect.  Mirrors are
	// best effort and must not hold up a live attacker session.
	DefaultMirrorTimeout = 3 * time.Second

	// DefaultLoopGuard applies loop prevention to mirror connections.
	DefaultLoopGuard = "mirror"

	// DefaultMirrorMaxFailures is how many consecutive mirror failures
	// open the mirror circuit breaker.
	DefaultMirrorMaxFailures = 5

	// DefaultMirrorCooldown is how long the breaker stays open before a
	// mirror connection is tried again.
	DefaultMirrorCooldown = 30 * time.Second

	// DefaultListenRetries is how many times binding the listener is
	// attempted while the address is still in use.
	DefaultListenRetries = 5

	// DefaultListenRetryDelay is the first delay between bind attempts.
	DefaultListenRetryDelay = 200 * time.Millisecond

	// DefaultGracePeriod is how long shutdown waits for relays to finish.
	DefaultGracePeriod = 5 * time.Second
)
