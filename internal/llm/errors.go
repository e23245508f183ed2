package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an upstream model or search failure
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindUnavailable Kind = "unavailable"
	KindRejected    Kind = "rejected"
	KindBadResponse Kind = "bad_response"
)

// Error is returned by every client in this package
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err. Errors that did not come from
// this package are reported as unavailable unless they are timeouts.
func KindOf(err error) Kind {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	return KindUnavailable
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// kindForStatus maps an HTTP status code onto a failure kind
func kindForStatus(code int) Kind {
	switch {
	case code == 429:
		return KindRateLimited
	case code == 408 || code == 504:
		return KindTimeout
	case code >= 500:
		return KindUnavailable
	default:
		return KindRejected
	}
}

// wrap classifies a transport error
func wrap(provider string, err error) *Error {
	kind := KindUnavailable
	if isTimeout(err) {
		kind = KindTimeout
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}
