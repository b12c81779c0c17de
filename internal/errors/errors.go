// Package errors provides domain-specific error types for honeyrelay.
//
// These types carry structured context (kind, mode, ports, target) that
// helps callers decide how to handle failures and provides better
// diagnostics than plain string wrapping.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Connection-establishment kinds ───────────────────────────────────

// Kind classifies why an outbound connection could not be established.
type Kind int

const (
	KindNoAttackRecord Kind = iota + 1
	KindUnsupportedMode
	KindLoopPrevented
	KindSocketCreateFailed
	KindConnectFailed
	KindConnectTimeout
	KindLocalAddressUnavailable
)

var kindNames = [...]string{
	KindNoAttackRecord:          "no attack record",
	KindUnsupportedMode:         "unsupported mode",
	KindLoopPrevented:           "loop prevented",
	KindSocketCreateFailed:      "socket create failed",
	KindConnectFailed:           "connect failed",
	KindConnectTimeout:          "connect timed out",
	KindLocalAddressUnavailable: "local address unavailable",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNoAttackRecord          = errors.New("no attack record to fill")
	ErrUnsupportedMode         = errors.New("connection mode is not supported")
	ErrLoopPrevented           = errors.New("connection suppressed for loop prevention")
	ErrSocketCreateFailed      = errors.New("unable to create client socket")
	ErrConnectFailed           = errors.New("unable to establish connection")
	ErrConnectTimeout          = errors.New("connection timed out")
	ErrLocalAddressUnavailable = errors.New("unable to get local address")

	ErrCircuitOpen = errors.New("circuit breaker is open")
)

var kindSentinels = [...]error{
	KindNoAttackRecord:          ErrNoAttackRecord,
	KindUnsupportedMode:         ErrUnsupportedMode,
	KindLoopPrevented:           ErrLoopPrevented,
	KindSocketCreateFailed:      ErrSocketCreateFailed,
	KindConnectFailed:           ErrConnectFailed,
	KindConnectTimeout:          ErrConnectTimeout,
	KindLocalAddressUnavailable: ErrLocalAddressUnavailable,
}

// Sentinel returns the sentinel error matching k, or nil for an unknown kind.
func (k Kind) Sentinel() error {
	if k > 0 && int(k) < len(kindSentinels) {
		return kindSentinels[k]
	}
	return nil
}

// ── Structured error types ───────────────────────────────────────────

// ConnectError describes a failed outbound connection attempt.  It
// matches the sentinel for its Kind under errors.Is and also unwraps to
// the underlying OS error, if any.
type ConnectError struct {
	Kind       Kind
	Mode       string // "proxy", "mirror", or the raw value for an unknown mode
	ListenPort uint16 // local port the attacker connected to
	Target     string // remote address:port, empty before it is known
	Err        error  // underlying error (nil when the kind says it all)
}

func (e *ConnectError) Error() string {
	s := fmt.Sprintf("%s %d", e.Mode, e.ListenPort)
	if e.Target != "" {
		s += " -> " + e.Target
	}
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		s += ": " + sentinel.Error()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ConnectError) Unwrap() []error {
	var errs []error
	if sentinel := e.Kind.Sentinel(); sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NetworkError represents a failure in a listener-side network operation.
type NetworkError struct {
	Op        string // operation: "listen", "accept", "relay"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf returns the Kind of the first ConnectError in err's chain, or 0.
func KindOf(err error) Kind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// IsRetryable reports whether err is worth retrying.  Establishment
// failures are never retried internally, but a caller may choose to
// retry timeouts and plain connect failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind == KindConnectTimeout || ce.Kind == KindConnectFailed
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Timeout() || opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use honeyrelay/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
