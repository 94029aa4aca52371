package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientError represents an error that can be retried
type TransientError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // caller-friendly message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransient wraps err as retryable.
func NewTransient(err error, statusCode int) error {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewPermanent wraps err as non-retryable.
func NewPermanent(err error, statusCode int) error {
	return &PermanentError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error is worth retrying. Unclassified
// network timeouts count as transient; explicit permanent errors and
// context cancellation never do.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{"connection reset", "connection refused", "temporarily", "rate limit", "too many requests", "service unavailable"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// ClassifyHTTPStatus maps an HTTP status code onto the retry taxonomy.
func ClassifyHTTPStatus(statusCode int, err error) error {
	switch {
	case statusCode == 429 || statusCode >= 500:
		return NewTransient(err, statusCode)
	case statusCode >= 400:
		return NewPermanent(err, statusCode)
	default:
		return err
	}
}
