// Package ferrors defines Firewatch's closed error taxonomy (spec §7). The
// core returns these so callers can switch on kind rather than parse
// messages; retrying NetworkError is the only automatic recovery
// (RateLimitError is returned with its reset time, not retried).
package ferrors

import (
	"errors"
	"fmt"
	"time"
)

// ConfigError reports malformed config or an out-of-range value. Fatal at
// surface init.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Msg + wrapSuffix(e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError reports a missing or rejected credential.
type AuthError struct {
	Msg string
	Err error
}

func (e *AuthError) Error() string { return "auth: " + e.Msg + wrapSuffix(e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError reports a transport-level failure (DNS, TCP, TLS, timeout).
// Retried with jitter by the caller; eventually surfaced.
type NetworkError struct {
	Msg string
	Err error
}

func (e *NetworkError) Error() string { return "network: " + e.Msg + wrapSuffix(e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitError carries the time at which the caller's rate limit resets.
type RateLimitError struct {
	ResetAt time.Time
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited until %s%s", e.ResetAt.Format(time.RFC3339), wrapSuffix(e.Err))
}
func (e *RateLimitError) Unwrap() error { return e.Err }

// NotFoundError reports a missing PR, comment, or thread.
type NotFoundError struct {
	What string
	Err  error
}

func (e *NotFoundError) Error() string { return "not found: " + e.What + wrapSuffix(e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

// ConflictError reports a remote conflict. Reaction-duplicate conflicts are
// treated as success by callers; others are surfaced.
type ConflictError struct {
	Msg string
	Err error
}

func (e *ConflictError) Error() string { return "conflict: " + e.Msg + wrapSuffix(e.Err) }
func (e *ConflictError) Unwrap() error { return e.Err }

// PermanentError reports a non-retryable transport failure.
type PermanentError struct {
	Msg string
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Msg + wrapSuffix(e.Err) }
func (e *PermanentError) Unwrap() error { return e.Err }

// StoreError reports an IO or serialization fault from the Store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + wrapSuffix(e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// IdFormatError reports an input that matches none of the ID shapes.
type IdFormatError struct {
	Input string
}

func (e *IdFormatError) Error() string { return fmt.Sprintf("id format: %q is not a PR number, short ID, or node ID", e.Input) }

// IdAmbiguousError reports a short ID with more than one full-ID collision
// candidate. The resolver still returns a deterministic answer; this is
// carried as a warning alongside it.
type IdAmbiguousError struct {
	ShortID  string
	Resolved string
	Others   []string
}

func (e *IdAmbiguousError) Error() string {
	return fmt.Sprintf("id ambiguous: short id %q matches %d candidates, resolved to %q", e.ShortID, len(e.Others)+1, e.Resolved)
}

// IdNotFoundError reports a well-formed ID that resolves to nothing.
type IdNotFoundError struct {
	Input string
}

func (e *IdNotFoundError) Error() string { return fmt.Sprintf("id not found: %q", e.Input) }

// FreezeError reports an invalid freeze/unfreeze request.
type FreezeError struct {
	Msg string
}

func (e *FreezeError) Error() string { return "freeze: " + e.Msg }

// CacheMissError reports that a no_sync (offline) query found no cached
// data to answer from.
type CacheMissError struct {
	Repo  string
	Scope string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("cache miss: no synced data for %s (scope %s) and no_sync is set", e.Repo, e.Scope)
}

// ValidationError reports a user-input issue outside the ID layer.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg) }

func wrapSuffix(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}

// IsRetryable reports whether err is a kind the caller should retry
// (NetworkError) with backoff. RateLimitError is not retryable: it is
// returned to the caller with its ResetAt.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
