// Package app wires configuration into a running service.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/brain"
	"github.com/ent0n29/sourcebot/internal/config"
	"github.com/ent0n29/sourcebot/internal/dialogue"
	"github.com/ent0n29/sourcebot/internal/httpapi"
	"github.com/ent0n29/sourcebot/internal/observability"
	"github.com/ent0n29/sourcebot/internal/requirements"
	"github.com/ent0n29/sourcebot/internal/session"
)

type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Sessions     *session.MemoryStore
	Orchestrator *dialogue.Orchestrator
	Requirements requirements.Store
	Metrics      *observability.Metrics
	Stages       *observability.StageWindow
	Provider     string

	// Cleanup should be called on shutdown to release external resources.
	Cleanup func() error
}

// ModelConfig maps service settings onto the model factory.
func ModelConfig(cfg config.Config) brain.Config {
	return brain.Config{
		Provider:        cfg.ModelProvider,
		Temperature:     cfg.ModelTemperature,
		MaxTokens:       cfg.ModelMaxTokens,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
		HTTPURL:         cfg.ModelHTTPURL,
		HTTPTimeout:     cfg.ModelTimeout,
	}
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	stages := observability.NewStageWindow(256)

	model, err := brain.New(ModelConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("model init failed: %w", err)
	}
	provider := brain.ProviderName(model)

	reqStore, err := requirements.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("requirements store init failed: %w", err)
	}

	sessions := session.NewMemoryStore(cfg.SessionHistoryLimit)
	orchestrator := dialogue.NewOrchestrator(sessions, model, dialogue.Options{
		ModelTimeout: cfg.ModelTimeout,
		Requirements: reqStore,
		Metrics:      metrics,
		Stages:       stages,
		Logger:       logger,
	})

	// Report the resolved backend rather than "auto".
	cfg.ModelProvider = provider
	api := httpapi.New(cfg, orchestrator, reqStore, metrics, stages, logger)

	logger.Info("service built",
		zap.String("model_provider", provider),
		zap.String("requirements_store", fmt.Sprintf("%T", reqStore)),
		zap.Int("session_history_limit", cfg.SessionHistoryLimit),
	)

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Sessions:     sessions,
		Orchestrator: orchestrator,
		Requirements: reqStore,
		Metrics:      metrics,
		Stages:       stages,
		Provider:     provider,
		Cleanup:      reqStore.Close,
	}, nil
}
