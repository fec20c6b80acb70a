// Package provideradapter selects and caches the concrete model.Client for a
// request's provider family ("Model naming") and wires it against
// the per-provider credentials loaded by gateway/config.
package provideradapter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"goa.design/pulse/rmap"

	gwcfg "github.com/masaicai/openresponses/gateway/config"
	"github.com/masaicai/openresponses/gateway/gatewayerrors"
	"github.com/masaicai/openresponses/gateway/provideradapter/anthropic"
	"github.com/masaicai/openresponses/gateway/provideradapter/bedrock"
	"github.com/masaicai/openresponses/gateway/provideradapter/middleware"
	"github.com/masaicai/openresponses/gateway/provideradapter/openai"
	"github.com/masaicai/openresponses/runtime/agent/model"
)

// defaultBaseURLs lists the documented OpenAI-compatible chat-completions
// endpoint for every provider family that is not itself OpenAI, so a bare
// provider name resolves to a working upstream even without a
// "<PROVIDER>_BASE_URL" override in gateway/config.
var defaultBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"xai":        "https://api.x.ai/v1",
	"togetherai": "https://api.together.xyz/v1",
}

// Registry resolves model.Client instances by provider family, using the
// "<provider>@<model>" naming / x-model-provider header convention. Clients
// are built lazily on first use and cached for the registry's lifetime
// since each wraps a long-lived HTTP client.
type Registry struct {
	cfg *gwcfg.Config

	mu      sync.Mutex
	clients map[string]model.Client

	bedrockRuntime *bedrockruntime.Client // lazily initialized, shared across requests

	rateLimitTPM float64    // 0 disables the adaptive rate limiter entirely
	rateMap      *rmap.Map  // non-nil when cfg.RedisAddr coordinates limits across processes
	rateMapKeyFn func(provider string) string
}

// NewRegistry builds a Registry over the gateway's resolved configuration.
func NewRegistry(cfg *gwcfg.Config) *Registry {
	return &Registry{cfg: cfg, clients: make(map[string]model.Client)}
}

// NewRegistryWithRateLimiting builds a Registry that wraps every provider
// client with an AdaptiveRateLimiter, since per-provider credentials imply
// per-provider budgets. When cfg.RedisAddr is set, the tokens-per-minute
// budget is coordinated across every gateway process sharing that Redis
// instance via a Pulse rmap; otherwise each process enforces its own local
// budget.
func NewRegistryWithRateLimiting(ctx context.Context, cfg *gwcfg.Config, rateLimitTPM int) (*Registry, error) {
	r := &Registry{cfg: cfg, clients: make(map[string]model.Client), rateLimitTPM: float64(rateLimitTPM)}
	if rateLimitTPM <= 0 {
		return r, nil
	}
	if cfg.RedisAddr == "" {
		return r, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	m, err := rmap.Join(ctx, "openresponses-provider-rate-limits", rdb)
	if err != nil {
		return nil, fmt.Errorf("provideradapter: join rate-limit replicated map: %w", err)
	}
	r.rateMap = m
	r.rateMapKeyFn = func(provider string) string { return "tpm:" + provider }
	return r, nil
}

// Resolve parses a request's model identifier and optional x-model-provider
// header into a (provider, model) pair and returns the
// corresponding model.Client, constructing and caching it on first use.
//
//   - "openai@gpt-4o" selects provider "openai", model "gpt-4o".
//   - "gpt-4o" with x-model-provider "openai" set is equivalent.
//   - A bare model with no x-model-provider header is rejected as
//     invalid_request: the provider family cannot be inferred.
//   - An unrecognized provider name is rejected as invalid_request.
func (r *Registry) Resolve(modelField, providerHeader string) (model.Client, string, error) {
	provider, modelID, err := splitProviderModel(modelField, providerHeader)
	if err != nil {
		return nil, "", err
	}
	client, err := r.clientFor(provider)
	if err != nil {
		return nil, "", err
	}
	return client, modelID, nil
}

func splitProviderModel(modelField, providerHeader string) (provider, modelID string, err error) {
	if idx := strings.IndexByte(modelField, '@'); idx >= 0 {
		provider = strings.ToLower(strings.TrimSpace(modelField[:idx]))
		modelID = strings.TrimSpace(modelField[idx+1:])
	} else {
		modelID = strings.TrimSpace(modelField)
		provider = strings.ToLower(strings.TrimSpace(providerHeader))
	}
	if provider == "" {
		return "", "", gatewayerrors.New(gatewayerrors.ClassInvalidRequest,
			`model provider could not be determined: use "<provider>@<model>" or set x-model-provider`).
			WithParam("model")
	}
	if modelID == "" {
		return "", "", gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "model is required").WithParam("model")
	}
	if !isKnownProvider(provider) {
		return "", "", gatewayerrors.Newf(gatewayerrors.ClassInvalidRequest, "unknown model provider %q", provider).
			WithParam("model")
	}
	return provider, modelID, nil
}

func isKnownProvider(provider string) bool {
	switch provider {
	case "openai", "anthropic", "groq", "xai", "togetherai", "bedrock":
		return true
	default:
		return false
	}
}

func (r *Registry) clientFor(provider string) (model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[provider]; ok {
		return c, nil
	}
	client, err := r.buildClient(provider)
	if err != nil {
		return nil, err
	}
	client = r.applyRateLimit(provider, client)
	r.clients[provider] = client
	return client, nil
}

// applyRateLimit wraps client in an AdaptiveRateLimiter when rate limiting is
// enabled, leaving it untouched otherwise.
func (r *Registry) applyRateLimit(provider string, client model.Client) model.Client {
	if r.rateLimitTPM <= 0 {
		return client
	}
	var key string
	if r.rateMapKeyFn != nil {
		key = r.rateMapKeyFn(provider)
	}
	limiter := middleware.NewAdaptiveRateLimiter(context.Background(), r.rateMap, key, r.rateLimitTPM, r.rateLimitTPM*4)
	return limiter.Middleware()(client)
}

func (r *Registry) buildClient(provider string) (model.Client, error) {
	switch provider {
	case "anthropic":
		creds := r.cfg.Providers["anthropic"]
		if creds.APIKey == "" {
			return nil, gatewayerrors.New(gatewayerrors.ClassInvalidRequest, "ANTHROPIC_API_KEY is not configured")
		}
		return anthropic.NewFromCredentials(creds.APIKey, creds.BaseURL, creds.DefaultModel, r.cfg.DefaultMaxTokens)
	case "bedrock":
		rt, err := r.bedrockRuntimeClient()
		if err != nil {
			return nil, err
		}
		creds := r.cfg.Providers["bedrock"]
		return bedrock.New(rt, bedrock.Options{DefaultModel: creds.DefaultModel, MaxTokens: r.cfg.DefaultMaxTokens})
	case "openai", "groq", "xai", "togetherai":
		creds := r.cfg.Providers[provider]
		if creds.APIKey == "" {
			return nil, gatewayerrors.Newf(gatewayerrors.ClassInvalidRequest, "%s API key is not configured", strings.ToUpper(provider))
		}
		baseURL := creds.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[provider]
		}
		return openai.NewFromCredentials(creds.APIKey, baseURL, creds.DefaultModel, r.cfg.DefaultMaxTokens)
	default:
		return nil, gatewayerrors.Newf(gatewayerrors.ClassInvalidRequest, "unknown model provider %q", provider)
	}
}

func (r *Registry) bedrockRuntimeClient() (*bedrockruntime.Client, error) {
	if r.bedrockRuntime != nil {
		return r.bedrockRuntime, nil
	}
	awsCfg, err := awscfg.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	r.bedrockRuntime = bedrockruntime.NewFromConfig(awsCfg)
	return r.bedrockRuntime, nil
}
