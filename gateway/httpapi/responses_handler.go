package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/masaicai/openresponses/gateway/budget"
	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/payload"
	"github.com/masaicai/openresponses/gateway/responses"
	"github.com/masaicai/openresponses/gateway/store"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/stream"
	"github.com/masaicai/openresponses/runtime/toolregistry"
)

// responsesHandler implements the POST/GET/DELETE /v1/responses surface:
// translating, running the tool loop, and persisting through the converter,
// orchestrator, tool registry, and the Response Store.
type responsesHandler struct {
	deps Deps
}

func (h *responsesHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)

	var req responses.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "request body is not valid JSON"))
		return
	}

	client, modelID, err := h.deps.Providers.Resolve(req.Model, providerHeaderFromContext(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	if req.PreviousResponseID != "" {
		if h.deps.Store == nil {
			writeError(w, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "previous_response_id requires a configured response store"))
			return
		}
		prior, err := h.deps.Store.ListInputItems(ctx, req.PreviousResponseID)
		if err != nil {
			h.writeStoreErr(w, err)
			return
		}
		if req, err = mergePreviousResponse(prior, req); err != nil {
			writeError(w, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, err.Error()).WithPath("input"))
			return
		}
	}

	modelReq, aliases, err := responses.Convert(ctx, req, responses.ConverterDeps{Files: h.deps.Files, Registry: h.deps.Tools})
	if err != nil {
		writeError(w, err)
		return
	}
	modelReq.Model = modelID

	responseID := "resp_" + uuid.NewString()
	accessor := buildAccessor(req.FileSearch)
	cfg := h.deps.Config.BudgetConfig()
	cfg.MaxOutputTokens = modelReq.MaxTokens
	createdAt := strconv.FormatInt(time.Now().Unix(), 10)

	persistIt := true
	if req.Store != nil {
		persistIt = *req.Store
	}

	if req.Stream {
		h.stream(ctx, w, responseID, modelID, createdAt, client, modelReq, cfg, accessor, req, aliases, persistIt)
		return
	}

	emitter := stream.NewEmitter(nullSink{}, responseID, modelID)
	result := h.deps.Orchestrator.Run(ctx, client, modelReq, emitter, cfg, accessor)

	resp := buildResponse(responseID, modelID, createdAt, result)
	resp.Tools = toWireToolSpecs(modelReq.Tools)
	resp = payload.Format(resp, aliases, h.deps.Tools)
	h.persist(ctx, persistIt, resp, req)
	writeJSON(w, http.StatusOK, resp)
}

// stream drives the orchestrator with an SSE sink attached, then persists
// the assembled document after the terminal event has already reached the
// client: the HTTP status stays 200 once streaming begins.
func (h *responsesHandler) stream(
	ctx context.Context, w http.ResponseWriter, responseID, modelID, createdAt string,
	client model.Client, modelReq *model.Request, cfg budget.Config, accessor toolcatalog.ParamsAccessor,
	req responses.Request, aliases responses.AliasMap, persistIt bool,
) {
	sink, err := newSSESink(w)
	if err != nil {
		writeError(w, err)
		return
	}
	// Native tools stream best-effort progress through the same sink.
	ctx = toolregistry.WithOutputDeltaPublisher(ctx, sink)
	emitter := stream.NewEmitter(sink, responseID, modelID)
	result := h.deps.Orchestrator.Run(ctx, client, modelReq, emitter, cfg, accessor)
	_ = sink.Close(ctx)

	resp := buildResponse(responseID, modelID, createdAt, result)
	resp.Tools = toWireToolSpecs(modelReq.Tools)
	resp = payload.Format(resp, aliases, h.deps.Tools)
	h.persist(ctx, persistIt, resp, req)
}

func (h *responsesHandler) persist(ctx context.Context, persistIt bool, resp *responses.Response, req responses.Request) {
	if !persistIt || h.deps.Store == nil {
		return
	}
	if ctx.Err() != nil {
		// Client went away mid-run; never persist a partial response.
		return
	}
	if err := h.deps.Store.Save(ctx, resp, inputItemsForStorage(req)); err != nil {
		h.deps.Logger.Error(ctx, "failed to persist response", "response_id", resp.ID, "error", err)
	}
}

func (h *responsesHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	id := chi.URLParam(r, "id")
	if h.deps.Store == nil {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassNotFound, "response store is not configured"))
		return
	}
	resp, err := h.deps.Store.Get(ctx, id)
	if err != nil {
		h.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *responsesHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	id := chi.URLParam(r, "id")
	if h.deps.Store == nil {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassNotFound, "response store is not configured"))
		return
	}
	if err := h.deps.Store.Delete(ctx, id); err != nil {
		h.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "response.deleted", "deleted": true})
}

func (h *responsesHandler) inputItems(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	id := chi.URLParam(r, "id")
	if h.deps.Store == nil {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassNotFound, "response store is not configured"))
		return
	}
	items, err := h.deps.Store.ListInputItems(ctx, id)
	if err != nil {
		h.writeStoreErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": items})
}

func (h *responsesHandler) writeStoreErr(w http.ResponseWriter, err error) {
	if err == store.ErrNotFound {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassNotFound, "response not found"))
		return
	}
	writeError(w, gatewayerrors.WithCause(gatewayerrors.ClassStorageError, "store operation failed", gatewayerrors.From(err)))
}
