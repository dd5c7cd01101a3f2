package client

import (
	"errors"
	"fmt"
)

// Typed failures surfaced to callers. Handlers map these onto HTTP status
// codes; nothing below this taxonomy (retry counts, attempt timing) leaks
// out of the client.
var (
	// ErrRateLimited indicates the upstream or limiter signaled throttling.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrNotFound indicates the upstream confirmed the resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidData indicates the payload failed to parse or validate.
	ErrInvalidData = errors.New("invalid upstream data")

	// ErrTimeout indicates the retry budget was exhausted without a
	// definitive answer.
	ErrTimeout = errors.New("request timed out")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents definitive 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 throttling responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/transport errors.
	ErrorClassNetwork ErrorClass = "network"
)

// StatusError carries the last upstream status alongside the mapped
// taxonomy error.
type StatusError struct {
	StatusCode int
	Status     string
	Err        error
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error (status %d %s): %v", e.StatusCode, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream error (status %d %s)", e.StatusCode, e.Status)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *StatusError) Unwrap() error {
	return e.Err
}

// classifyStatus buckets an HTTP status for metrics and retry decisions.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == 429:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// retryableStatus reports whether a status is transient. Definitive
// failures (404, validation errors) never consume retry budget.
func retryableStatus(status int) bool {
	return status == 429 || status == 408 || status >= 500
}
