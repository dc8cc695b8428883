package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrServiceDegraded is returned without attempting the upstream call while
// the circuit breaker is open.
var ErrServiceDegraded = errors.New("service_degraded: circuit open")

// ErrorKind classifies an upstream failure for retry and surfacing decisions.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "upstream_timeout"
	KindServer     ErrorKind = "upstream_5xx"
	KindConnection ErrorKind = "connection_error"
	KindClient     ErrorKind = "upstream_4xx"
	KindAuth       ErrorKind = "auth_error"
	KindDegraded   ErrorKind = "service_degraded"
	KindUnknown    ErrorKind = "unknown"
)

// Classify maps an upstream error onto the failure taxonomy. Timeouts,
// 5xx responses, and connection resets are retryable; auth failures and other
// 4xx responses are terminal.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrServiceDegraded) {
		return KindDegraded
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) {
		status := se.HTTPStatus()
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return KindAuth
		case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
			return KindTimeout
		case status >= 500:
			return KindServer
		case status >= 400:
			return KindClient
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindConnection
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindConnection
	}

	return KindUnknown
}

// Retryable reports whether a failure of this kind should be retried.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindServer, KindConnection:
		return true
	default:
		return false
	}
}
