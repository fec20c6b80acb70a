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
	"github.com/masaicai/openresponses/gateway/chatapi"
	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/payload"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/model"
	"github.com/masaicai/openresponses/runtime/agent/stream"
)

// chatHandler implements the POST /v1/chat/completions surface: the same
// converter/orchestrator/builder wiring as responsesHandler, with
// a chat-completions-shaped Parameter Converter and response builder and,
// when streaming, chat.completion.chunk framing instead of Responses-API
// SSE events.
type chatHandler struct {
	deps Deps
}

func (h *chatHandler) create(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)

	var req chatapi.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "request body is not valid JSON"))
		return
	}

	client, modelID, err := h.deps.Providers.Resolve(req.Model, providerHeaderFromContext(ctx))
	if err != nil {
		writeError(w, err)
		return
	}

	modelReq, _, err := chatapi.Convert(ctx, req, chatapi.ConverterDeps{Registry: h.deps.Tools})
	if err != nil {
		writeError(w, err)
		return
	}
	modelReq.Model = modelID

	responseID := "chatcmpl_" + uuid.NewString()
	accessor := toolcatalog.StaticParams{}
	cfg := h.deps.Config.BudgetConfig()
	cfg.MaxOutputTokens = modelReq.MaxTokens
	createdAt := strconv.FormatInt(time.Now().Unix(), 10)
	persistIt := req.Store != nil && *req.Store

	if req.Stream {
		h.stream(ctx, w, responseID, modelID, createdAt, client, modelReq, cfg, accessor, persistIt)
		return
	}

	emitter := stream.NewEmitter(nullSink{}, responseID, modelID)
	result := h.deps.Orchestrator.Run(ctx, client, modelReq, emitter, cfg, accessor)

	resp := chatapi.BuildResponse(responseID, modelID, createdAt, result)
	resp.Created = payload.FormatCreatedAt(resp.Created)
	h.persist(ctx, persistIt, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *chatHandler) stream(
	ctx context.Context, w http.ResponseWriter, responseID, modelID, createdAt string,
	client model.Client, modelReq *model.Request, cfg budget.Config, accessor toolcatalog.ParamsAccessor,
	persistIt bool,
) {
	sink, err := newChatChunkSink(w, responseID, modelID, createdAt)
	if err != nil {
		writeError(w, err)
		return
	}
	emitter := stream.NewEmitter(sink, responseID, modelID)
	result := h.deps.Orchestrator.Run(ctx, client, modelReq, emitter, cfg, accessor)
	_ = emitter.ChatCompletionDone(ctx)
	_ = sink.Close(ctx)

	resp := chatapi.BuildResponse(responseID, modelID, createdAt, result)
	resp.Created = payload.FormatCreatedAt(resp.Created)
	h.persist(ctx, persistIt, resp)
}

func (h *chatHandler) persist(ctx context.Context, persistIt bool, resp *chatapi.Response) {
	if !persistIt || h.deps.ChatStore == nil {
		return
	}
	if ctx.Err() != nil {
		// Client went away mid-run; never persist a partial completion.
		return
	}
	if err := h.deps.ChatStore.Save(ctx, resp); err != nil {
		h.deps.Logger.Error(ctx, "failed to persist chat completion", "id", resp.ID, "error", err)
	}
}

// get implements GET /v1/chat/completions/{id}, consulted only for
// completions originally created with store=true (opt-in
// persistence convention, mirrored for this surface).
func (h *chatHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	id := chi.URLParam(r, "id")
	if h.deps.ChatStore == nil {
		writeError(w, gatewayerrors.Newf(gatewayerrors.ClassNotFound, "chat completion %q not found", id))
		return
	}
	resp, err := h.deps.ChatStore.Get(ctx, id)
	if err != nil {
		writeError(w, gatewayerrors.Newf(gatewayerrors.ClassNotFound, "chat completion %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *chatHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	id := chi.URLParam(r, "id")
	if h.deps.ChatStore == nil {
		writeError(w, gatewayerrors.Newf(gatewayerrors.ClassNotFound, "chat completion %q not found", id))
		return
	}
	if err := h.deps.ChatStore.Delete(ctx, id); err != nil {
		writeError(w, gatewayerrors.Newf(gatewayerrors.ClassNotFound, "chat completion %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "object": "chat.completion.deleted", "deleted": true})
}
