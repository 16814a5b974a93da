package gbot

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoToken = errors.New("github token not configured")
	ErrNoLogin = errors.New("github did not report a login for the token")
)

// APIError is a non-2xx answer of the REST API.
type APIError struct {
	StatusCode int
	Message    string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited reports a primary (403) or secondary (429) rate limit answer.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 ||
		(apiErr.StatusCode == 403 && strings.Contains(strings.ToLower(apiErr.Message), "rate limit"))
}
