package notifier

import (
	"strconv"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned when notifier is used after Close.
	ErrClosed = errors.New("notifier is closed")

	// ErrQueueFull is returned when async notice can't be queued.
	ErrQueueFull = errors.New("notices queue is full")

	// ErrNilError is returned when nil error is notified.
	ErrNilError = errors.New("nil error can't be notified")

	// ErrNoticeFiltered is returned by NotifySync when notice was rejected by filters.
	ErrNoticeFiltered = errors.New("notice was filtered out")

	// ErrMissingCredentials is returned when project id or key is not configured.
	ErrMissingCredentials = errors.New("project id and project key are required")

	// ErrUnauthorized is returned when api rejects project credentials.
	ErrUnauthorized = errors.New("unauthorized: project id or key are wrong")

	// ErrRateLimited is returned while api rate limit is in effect.
	ErrRateLimited = errors.New("api rate limit exceeded")
)

// BadRequestError is returned when api rejects notice payload.
type BadRequestError string

// Error implements error interface.
func (e BadRequestError) Error() string {
	return "bad request: " + string(e)
}

// StatusError is returned when api responds with unexpected status code.
type StatusError int

// Error implements error interface.
func (e StatusError) Error() string {
	return "unexpected response status: " + strconv.Itoa(int(e))
}

// isPermanent tells if sending the same notice again can't succeed.
func isPermanent(err error) bool {
	var bre BadRequestError
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.As(err, &bre)
}
