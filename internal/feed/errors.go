package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors for the non-retryable failure classes. Only ErrNoData is
// ever visible to a fetch caller; the rest are absorbed by the
// orchestrator and surfaced through metrics and logs.
var (
	// ErrPolicyDenied means the origin's crawl policy forbids the URL.
	ErrPolicyDenied = errors.New("fetch denied by crawl policy")

	// ErrCircuitOpen means the breaker is rejecting attempts for this source.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrNoData means neither a live fetch nor any cached snapshot exists.
	ErrNoData = errors.New("no data available")
)

// TransientKind classifies the transport failures worth retrying.
type TransientKind string

// Transient failure classes on the retry allow-list.
const (
	TransientTimeout     TransientKind = "timeout"
	TransientRateLimited TransientKind = "rate_limited"
	TransientServerError TransientKind = "server_error"
)

// TransientError wraps a transport failure that may succeed on retry.
type TransientError struct {
	Kind   TransientKind
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("transient %s: %v", e.Kind, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err belongs to the retryable class.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ParseError marks a payload whose shape the client did not expect.
// Retrying a malformed response wastes budget, so it is never retried,
// but it still counts as a breaker failure.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s payload: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
