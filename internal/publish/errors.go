package publish

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("only administrators can publish")
)

// UpstreamError is a failed call to the Git host or build hook. Status and
// Message are the upstream's own.
type UpstreamError struct {
	Step       string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}

	return fmt.Sprintf("%s: %d %s", e.Step, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps a Publish error to the status the endpoint answers with.
func HTTPStatus(err error) int {
	var upstream *UpstreamError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
