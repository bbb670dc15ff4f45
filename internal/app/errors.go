package app

import "github.com/pkg/errors"

// InvalidRequestError is special error type returned when any request params are invalid.
type InvalidRequestError string

// Error implements error interface.
func (e InvalidRequestError) Error() string {
	return string(e)
}

// IsInvalidRequest tells that this error is 'invalid request'.
// Returns always true.
func (InvalidRequestError) IsInvalidRequest() bool {
	return true
}

// TooManyRequestsError is returned when an outbound call can't be made because of a rate limit.
type TooManyRequestsError string

// Error implements error interface.
func (e TooManyRequestsError) Error() string {
	return string(e)
}

// IsTooManyRequests tells that this error is 'too many requests'.
// Returns always true.
func (TooManyRequestsError) IsTooManyRequests() bool {
	return true
}

// IsInvalidRequestError checks if given error is caused by invalid request.
func IsInvalidRequestError(err error) bool {
	type invalidReqErr interface {
		IsInvalidRequest() bool
	}

	var ire invalidReqErr
	if errors.As(err, &ire) {
		return ire.IsInvalidRequest()
	}

	return false
}

// IsTooManyRequestsError checks if given error is caused by exceeded rate limit.
func IsTooManyRequestsError(err error) bool {
	type tooManyReqErr interface {
		IsTooManyRequests() bool
	}

	var tmr tooManyReqErr
	if errors.As(err, &tmr) {
		return tmr.IsTooManyRequests()
	}

	return false
}
