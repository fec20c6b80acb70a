package gatewayerrors

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusUsesClassDefault(t *testing.T) {
	t.Parallel()
	err := New(ClassInvalidRequest, "bad tool schema")
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}

func TestHTTPStatusOverriddenByProviderStatus(t *testing.T) {
	t.Parallel()
	err := New(ClassAPIError, "upstream exploded").WithStatus(http.StatusTooManyRequests)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
}

func TestErrorChainUnwrapsToCause(t *testing.T) {
	t.Parallel()
	cause := New(ClassAPIError, "provider said no")
	wrapped := WithCause(ClassStreamingError, "stream terminated", cause)
	assert.Same(t, cause, wrapped.Unwrap())
	assert.ErrorIs(t, wrapped, cause)
}

func TestFromPassesThroughExistingError(t *testing.T) {
	t.Parallel()
	original := New(ClassToolNotFound, "unknown tool")
	got := From(original)
	assert.Same(t, original, got)
}

func TestFromClassifiesContextErrorsAsTimeout(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ClassTimeout, From(context.DeadlineExceeded).Class)
	assert.Equal(t, ClassTimeout, From(context.Canceled).Class)
}

func TestFromClassifiesUnknownErrorsAsProcessingError(t *testing.T) {
	t.Parallel()
	got := From(errors.New("boom"))
	assert.Equal(t, ClassProcessingError, got.Class)
	assert.Equal(t, "boom", got.Message)
}

func TestFromNilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, From(nil))
}

func TestToEnvelopeStampsRFC3339Timestamp(t *testing.T) {
	t.Parallel()
	err := New(ClassInvalidRequest, "x is required").WithParam("x").WithPath("tools[0].parameters.x")
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	env := err.ToEnvelope(now)
	require.Equal(t, "invalid_request", env.Type)
	assert.Equal(t, "x is required", env.Message)
	assert.Equal(t, "x", env.Param)
	assert.Equal(t, "2026-07-31T12:00:00Z", env.Timestamp)
}

func TestFromProviderSurfacesOriginalFields(t *testing.T) {
	t.Parallel()
	body := ProviderErrorBody{}
	body.Error.Message = "rate limited"
	body.Error.Type = "rate_limit_error"
	body.Error.Param = "model"
	body.Error.Code = "429"

	err := FromProvider(body, http.StatusTooManyRequests)
	assert.Equal(t, ClassAPIError, err.Class)
	assert.Equal(t, "rate limited", err.Message)
	assert.Equal(t, "model", err.Param)
	assert.Equal(t, "429", err.Code)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
}

func TestErrorStringIncludesPathWhenPresent(t *testing.T) {
	t.Parallel()
	err := New(ClassInvalidRequest, "bad shape").WithPath("tools[1].parameters")
	assert.Equal(t, "invalid_request: bad shape (tools[1].parameters)", err.Error())
}
