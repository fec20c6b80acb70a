// Package httpapi implements the HTTP transport surface: the chi
// router, request/response handlers for both wire protocols, and the
// Responses-API/Chat-Completions SSE sinks that adapt the shared Event
// Emitter to each protocol's streaming shape.
package httpapi

import (
	"github.com/masaicai/openresponses/gateway/chatapi"
	"github.com/masaicai/openresponses/gateway/config"
	"github.com/masaicai/openresponses/gateway/orchestrator"
	"github.com/masaicai/openresponses/gateway/provideradapter"
	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/store"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/telemetry"
)

// Deps bundles every collaborator the HTTP handlers need, assembled once at
// startup in cmd/ and shared read-only across requests.
type Deps struct {
	Config       *config.Config
	Providers    *provideradapter.Registry
	Tools        *toolcatalog.Registry
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	ChatStore    chatapi.Store
	Files        responses.FileService // nil: input_file items are rejected
	Logger       telemetry.Logger
}
