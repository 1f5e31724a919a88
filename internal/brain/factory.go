package brain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config controls model construction.
type Config struct {
	Provider    string
	Temperature float64
	MaxTokens   int

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	AnthropicAPIKey string
	AnthropicModel  string

	GeminiAPIKey string
	GeminiModel  string

	HTTPURL     string
	HTTPTimeout time.Duration
}

// New builds the model named by cfg.Provider. "auto" picks the first
// configured backend and falls back to the scripted mock.
func New(cfg Config) (Model, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	switch provider {
	case "auto":
		return newAutoModel(cfg), nil
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAIModel(cfg), nil
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return NewAnthropicModel(cfg), nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
		}
		return NewGeminiModel(cfg), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("MODEL_HTTP_URL is required for the http provider")
		}
		return NewHTTPModel(cfg.HTTPURL, cfg.HTTPTimeout), nil
	case "mock":
		return NewMockModel(), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

func newAutoModel(cfg Config) Model {
	switch {
	case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
		return NewOpenAIModel(cfg)
	case strings.TrimSpace(cfg.AnthropicAPIKey) != "":
		return NewAnthropicModel(cfg)
	case strings.TrimSpace(cfg.GeminiAPIKey) != "":
		return NewGeminiModel(cfg)
	case strings.TrimSpace(cfg.HTTPURL) != "":
		return NewHTTPModel(cfg.HTTPURL, cfg.HTTPTimeout)
	default:
		return NewMockModel()
	}
}

// ProviderName reports which backend a model talks to.
func ProviderName(m Model) string {
	switch m.(type) {
	case *OpenAIModel:
		return "openai"
	case *AnthropicModel:
		return "anthropic"
	case *GeminiModel:
		return "gemini"
	case *HTTPModel:
		return "http"
	case *MockModel:
		return "mock"
	default:
		return "custom"
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
