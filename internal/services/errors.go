package services

import "fmt"

// Service error taxonomy. Handlers map these onto HTTP status codes; anything
// unrecognized becomes a generic 500 with detail preserved only in logs.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// QuotaExceededError means the upstream video API rejected us for rate
// limiting and no stale cache entry could stand in. Surfaced verbatim to the
// user so they know to retry later.
type QuotaExceededError struct{ Message string }

func (e *QuotaExceededError) Error() string { return e.Message }

// UpstreamError is a generic third-party failure with the upstream message
// passed through.
type UpstreamError struct{ Message string }

func (e *UpstreamError) Error() string { return e.Message }

// GenerationFailedError aborts a whole generation batch; partial results are
// discarded.
type GenerationFailedError struct{ Message string }

func (e *GenerationFailedError) Error() string { return e.Message }

type OutOfTokensError struct {
	Required  int
	Remaining int
}

func (e *OutOfTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: need %d, %d remaining", e.Required, e.Remaining)
}
