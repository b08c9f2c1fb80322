package httperror

import (
	"fmt"
	"net/http"
)

// APIError is the fallback error for a non-2xx response whose body
// isn't one of our JSON-encoded errors. It keeps the status code so
// callers can still distinguish causes, via errors.Cause(err).
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (err *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", err.Status, err.Body)
}

// IsUnavailable reports whether the response says ferryd (or a proxy
// in front of it) can't be reached right now.
func (err *APIError) IsUnavailable() bool {
	switch err.StatusCode {
	case 502, 503, 504:
		return true
	}
	return false
}

// IsMissing reports a route the daemon doesn't serve, which usually
// means ferryctl and ferryd disagree on the API version.
func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}
