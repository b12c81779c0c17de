// Package metrics provides lightweight, lock-free counters for tracking
// runtime statistics of a honeyrelay process.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks establishment and relay metrics.
// A nil Collector is safe to use; all methods become no-ops.  A zero
// Collector is usable too, though only New sets the start time.
type Collector struct {
	relaysActive atomic.Int64
	relaysTotal  atomic.Int64
	bytesIn      atomic.Int64 // attacker → upstream
	bytesOut     atomic.Int64 // upstream → attacker
	bytesMirror  atomic.Int64
	mirrorDrops  atomic.Int64
	errorsTotal  atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	attempts     map[string]int64 // by mode
	successes    map[string]int64 // by mode
	failures     map[string]int64 // by failure kind
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{
		startTime: time.Now(),
		attempts:  make(map[string]int64),
		successes: make(map[string]int64),
		failures:  make(map[string]int64),
	}
}

// ── Establishment ────────────────────────────────────────────────────

// EstablishStarted records an outbound connection attempt in mode.
func (c *Collector) EstablishStarted(mode string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	bump(&c.attempts, mode)
	c.mu.Unlock()
}

// EstablishSucceeded records a completed outbound connection in mode.
func (c *Collector) EstablishSucceeded(mode string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	bump(&c.successes, mode)
	c.mu.Unlock()
}

// EstablishFailed records a failed attempt under its failure kind.
func (c *Collector) EstablishFailed(kind string, msg string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	bump(&c.failures, kind)
	c.mu.Unlock()
	c.RecordError(msg)
}

// Attempts returns the number of attempts made in mode.
func (c *Collector) Attempts(mode string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts[mode]
}

// Successes returns the number of connections established in mode.
func (c *Collector) Successes(mode string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.successes[mode]
}

// Failures returns the number of failures recorded under kind.
func (c *Collector) Failures(kind string) int64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures[kind]
}

// ── Relay metrics ────────────────────────────────────────────────────

// RelayOpened increments both the active and total relay counters.
func (c *Collector) RelayOpened() {
	if c == nil {
		return
	}
	c.relaysActive.Add(1)
	c.relaysTotal.Add(1)
}

// RelayClosed decrements the active relay counter.
func (c *Collector) RelayClosed() {
	if c == nil {
		return
	}
	c.relaysActive.Add(-1)
}

// ActiveRelays returns the current number of relayed sessions.
func (c *Collector) ActiveRelays() int64 {
	if c == nil {
		return 0
	}
	return c.relaysActive.Load()
}

// TotalRelays returns the lifetime relayed session count.
func (c *Collector) TotalRelays() int64 {
	if c == nil {
		return 0
	}
	return c.relaysTotal.Load()
}

// ── I/O metrics ──────────────────────────────────────────────────────

// BytesFromAttacker records n bytes forwarded upstream.
func (c *Collector) BytesFromAttacker(n int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(n)
}

// BytesToAttacker records n bytes forwarded back to the attacker.
func (c *Collector) BytesToAttacker(n int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(n)
}

// BytesMirrored records n bytes duplicated to a mirror target.
func (c *Collector) BytesMirrored(n int64) {
	if c == nil {
		return
	}
	c.bytesMirror.Add(n)
}

// MirrorDropped records a mirror connection abandoned mid-session.
func (c *Collector) MirrorDropped() {
	if c == nil {
		return
	}
	c.mirrorDrops.Add(1)
}

// TotalBytesIn returns total bytes received from attackers.
func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

// TotalBytesOut returns total bytes sent to attackers.
func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

// TotalBytesMirrored returns total bytes written to mirror targets.
func (c *Collector) TotalBytesMirrored() int64 {
	if c == nil {
		return 0
	}
	return c.bytesMirror.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string           `json:"uptime"`
	Attempts         map[string]int64 `json:"establish_attempts,omitempty"`
	Successes        map[string]int64 `json:"establish_successes,omitempty"`
	Failures         map[string]int64 `json:"establish_failures,omitempty"`
	RelaysActive     int64            `json:"relays_active"`
	RelaysTotal      int64            `json:"relays_total"`
	BytesIn          int64            `json:"bytes_in"`
	BytesOut         int64            `json:"bytes_out"`
	BytesMirrored    int64            `json:"bytes_mirrored"`
	MirrorDrops      int64            `json:"mirror_drops"`
	ErrorsTotal      int64            `json:"errors_total"`
	LastError        string           `json:"last_error,omitempty"`
	LastErrorMessage string           `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:        time.Since(c.startTime).Truncate(time.Second).String(),
		Attempts:      copyCounts(c.attempts),
		Successes:     copyCounts(c.successes),
		Failures:      copyCounts(c.failures),
		RelaysActive:  c.relaysActive.Load(),
		RelaysTotal:   c.relaysTotal.Load(),
		BytesIn:       c.bytesIn.Load(),
		BytesOut:      c.bytesOut.Load(),
		BytesMirrored: c.bytesMirror.Load(),
		MirrorDrops:   c.mirrorDrops.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// FailureKinds returns the failure kinds seen so far, sorted.
func (c *Collector) FailureKinds() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	kinds := make([]string, 0, len(c.failures))
	for k := range c.failures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

// bump increments (*m)[key], creating the map on first use.  The
// caller holds c.mu.
func bump(m *map[string]int64, key string) {
	if *m == nil {
		*m = make(map[string]int64)
	}
	(*m)[key]++
}

func copyCounts(m map[string]int64) map[string]int64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
