// Package backend defines the error taxonomy shared by the HTTP backend
// clients. All three error kinds are terminal: the callers never retry them
// beyond the poll loop's own bounded handling of the "still running" case.
package backend

import (
	"errors"
	"fmt"
)

// ErrPollTimeout is returned when a query is still running after the maximum
// number of poll attempts
var ErrPollTimeout = errors.New("query timed out waiting for results")

// TransportError represents a non-success HTTP response from a backend
type TransportError struct {
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// FormatError represents a response whose shape was not recognized
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return "unexpected response format"
	}
	return "unexpected response format: " + e.Detail
}
