package directory

import "errors"

// Domain-specific errors for directory operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrRequestFailed is returned when the HTTP request could not be completed.
	ErrRequestFailed = errors.New("directory: request failed")

	// ErrUnexpectedStatus is returned on a non-2xx response.
	ErrUnexpectedStatus = errors.New("directory: unexpected status")

	// ErrInvalidResponse is returned when the response body cannot be decoded.
	ErrInvalidResponse = errors.New("directory: invalid response")
)
