package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/masaicai/openresponses/gateway/chatapi"
	"github.com/masaicai/openresponses/gateway/config"
	"github.com/masaicai/openresponses/gateway/httpapi"
	"github.com/masaicai/openresponses/gateway/nativetool"
	"github.com/masaicai/openresponses/gateway/orchestrator"
	"github.com/masaicai/openresponses/gateway/provideradapter"
	"github.com/masaicai/openresponses/gateway/store"
	"github.com/masaicai/openresponses/gateway/toolcatalog"
	"github.com/masaicai/openresponses/runtime/agent/telemetry"
	"github.com/masaicai/openresponses/runtime/mcp"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP gateway",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zapBase, err := newZapLogger(cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zapBase.Sync() //nolint:errcheck
	logger := telemetry.NewZapLogger(zapBase)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing := initTracing("openresponses-gateway")
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	responseStore, err := newResponseStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open response store: %w", err)
	}

	providers, err := provideradapter.NewRegistryWithRateLimiting(ctx, cfg, cfg.RateLimitTPM)
	if err != nil {
		return fmt.Errorf("build provider registry: %w", err)
	}
	native := nativetool.NewRegistry(nil, nil, nil) // no vector search/LLM/image backends configured by default
	mcpPool := mcp.NewPool(10 * time.Second)
	tools := toolcatalog.New(native, mcpPool)

	if cfg.MCPEnabled && cfg.MCPConfigPath != "" {
		servers, err := loadMCPServers(cfg.MCPConfigPath)
		if err != nil {
			return fmt.Errorf("load mcp config: %w", err)
		}
		prewarmMCPServers(ctx, mcpPool, servers, func(label string, err error) {
			logger.Warn(ctx, "mcp server prewarm failed", "label", label, "error", err)
		})
	}

	orch := orchestrator.New(tools)
	orch.Telemetry = telemetry.Bundle{
		Logger: logger,
		Tracer: telemetry.NewClueTracer(),
		Meter:  telemetry.NewClueMetrics(),
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Config:       cfg,
		Providers:    providers,
		Tools:        tools,
		Orchestrator: orch,
		Store:        responseStore,
		ChatStore:    chatapi.NewMemoryStore(),
		Files:        nil, // no file service configured: input_file items are rejected
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	logger.Info(shutdownCtx, "shutting down gateway")
	return srv.Shutdown(shutdownCtx)
}

// newZapLogger builds a zap.Logger matching cfg's level/format, following
// this gateway's viper-driven config convention rather than zap's own env
// parsing.
func newZapLogger(format, level string) (*zap.Logger, error) {
	var zapCfg zap.Config
	if format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}

// newResponseStore selects the Response Store backend per cfg.StoreType.
func newResponseStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreType {
	case config.StoreMongoDB:
		client, err := mongodriver.Connect(mongooptions.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("ping mongodb: %w", err)
		}
		collection := client.Database(cfg.MongoDB).Collection("responses")
		return store.NewMongoStore(collection), nil
	default:
		return store.NewMemoryStore(), nil
	}
}
