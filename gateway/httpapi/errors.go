package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/masaicai/openresponses/gateway/gatewayerrors"
)

// writeError renders err as the gateway's standard error envelope
// at its class's HTTP status.
func writeError(w http.ResponseWriter, err error) {
	gwErr := gatewayerrors.From(err)
	writeJSON(w, gwErr.HTTPStatus(), gwErr.ToEnvelope(time.Now()))
}

// writeJSON marshals v as the response body at the given status, matching
// the content-type/charset the Responses and Chat Completions APIs both
// use for non-streaming documents.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
