package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sourcebot/internal/config"
	"github.com/ent0n29/sourcebot/internal/dialogue"
	"github.com/ent0n29/sourcebot/internal/protocol"
)

func testConfig() config.Config {
	return config.Config{
		MetricsNamespace:    "test",
		ModelProvider:       "auto",
		ModelTimeout:        time.Second,
		ModelTemperature:    0.7,
		ModelMaxTokens:      1000,
		SessionHistoryLimit: 50,
	}
}

func TestBuildDefaultsToMockAndMemory(t *testing.T) {
	res, err := Build(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Equal(t, "mock", res.Provider)
	assert.Equal(t, "mock", res.Config.ModelProvider)

	out, err := res.Orchestrator.HandleTurn(context.Background(), dialogue.TurnInput{Message: "I need mugs"})
	require.NoError(t, err)
	assert.Equal(t, protocol.KindPills, out.Turn.Type)
	assert.Equal(t, 1, res.Sessions.Count())

	rec := httptest.NewRecorder()
	res.API.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRejectsMissingProviderKey(t *testing.T) {
	cfg := testConfig()
	cfg.ModelProvider = "anthropic"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestModelConfig(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = "k"
	cfg.ModelHTTPURL = "http://localhost:9000"
	mc := ModelConfig(cfg)
	assert.Equal(t, "k", mc.OpenAIAPIKey)
	assert.Equal(t, "http://localhost:9000", mc.HTTPURL)
	assert.Equal(t, time.Second, mc.HTTPTimeout)
	assert.Equal(t, 1000, mc.MaxTokens)
}
