package app

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsInvalidRequestError(t *testing.T) {
	stdErr := errors.New("simple error")
	assert.False(t, IsInvalidRequestError(stdErr))

	irErr := InvalidRequestError("invalid request")
	assert.True(t, IsInvalidRequestError(irErr))

	wrapperErr := fmt.Errorf("wrapping message: %w", irErr)
	assert.True(t, IsInvalidRequestError(wrapperErr))

	pkgWrappedErr := errors.Wrap(irErr, "wrapping message")
	assert.True(t, IsInvalidRequestError(pkgWrappedErr))
}

func TestIsTooManyRequestsError(t *testing.T) {
	stdErr := errors.New("simple error")
	assert.False(t, IsTooManyRequestsError(stdErr))
	assert.False(t, IsTooManyRequestsError(InvalidRequestError("invalid")))

	tmrErr := TooManyRequestsError("slow down")
	assert.True(t, IsTooManyRequestsError(tmrErr))

	wrapperErr := fmt.Errorf("sending notice: %w", tmrErr)
	assert.True(t, IsTooManyRequestsError(wrapperErr))
}
