// Package errs defines the error taxonomy shared by the bridge.
//
// Transport errors (ErrConnectionRefused, ErrSocketClosed) are recovered by the
// connection manager and never reach callers directly. Call errors
// (ErrTimeout, ErrCancelled, ErrActionFailed, ErrAPINotAvailable) are returned
// to whoever issued the API call. Use errors.Is against the sentinels; the
// typed errors below carry diagnostics and match their sentinel.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrConnectionRefused    = errors.New("connection refused")
	ErrSocketClosed         = errors.New("socket closed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTimeout              = errors.New("api call timed out")
	ErrCancelled            = errors.New("api call cancelled")
	ErrActionFailed         = errors.New("action failed")
	ErrAPINotAvailable      = errors.New("api not available")
)

// ActionFailedError is returned when mirai answers a call with a non-zero
// status code or without a result payload.
type ActionFailedError struct {
	Command string
	Code    int
	Msg     string
	Raw     json.RawMessage
}

func (e *ActionFailedError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("action %s failed: code=%d msg=%s", e.Command, e.Code, e.Msg)
	}
	return fmt.Sprintf("action %s failed: code=%d payload=%s", e.Command, e.Code, string(e.Raw))
}

func (e *ActionFailedError) Is(target error) bool {
	return target == ErrActionFailed
}

// AuthError reports a rejected handshake for one account.
type AuthError struct {
	AccountID int64
	Code      int
	Msg       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %d: code=%d msg=%s", e.AccountID, e.Code, e.Msg)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// IsRetryable reports whether a failed connection attempt should be retried.
// Only a rejected handshake is final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrAuthenticationFailed)
}
