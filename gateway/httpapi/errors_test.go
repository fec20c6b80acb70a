package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

func TestWriteErrorSetsStatusAndEnvelope(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeError(rec, gatewayerrors.New(gatewayerrors.ClassToolNotFound, "unknown tool: frobnicate"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "tool_not_found", body["type"])
	assert.Equal(t, "unknown tool: frobnicate", body["message"])
}

func TestWriteErrorClassifiesPlainErrorAsProcessingError(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeError(rec, assertPlainError{"boom"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type assertPlainError struct{ msg string }

func (e assertPlainError) Error() string { return e.msg }

func TestWriteJSONEncodesBodyAtGivenStatus(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusCreated, map[string]string{"id": "resp_1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "resp_1", body["id"])
}
