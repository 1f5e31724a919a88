package httpapi

import (
	"net/http"
	"strings"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	ModelProvider       string        `json:"model_provider"`
	RequirementsStore   string        `json:"requirements_store"`
	SessionHistoryLimit int           `json:"session_history_limit"`
	ModelTimeoutMS      int64         `json:"model_timeout_ms"`
	Checks              []statusCheck `json:"checks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ModelProvider))
	if provider == "" {
		provider = "auto"
	}

	checks := make([]statusCheck, 0, 4)
	checks = append(checks, s.modelChecks(provider)...)

	mode := storeMode(s.requirements)
	switch mode {
	case "postgres":
		checks = append(checks, statusCheck{
			ID:     "requirements_store",
			Status: "ok",
			Label:  "Requirement persistence",
			Detail: "postgres",
		})
	case "in-memory":
		checks = append(checks, statusCheck{
			ID:     "requirements_store",
			Status: "warn",
			Label:  "Requirement persistence",
			Detail: "in-memory only",
			Fix:    "Set DATABASE_URL to keep submitted requirements across restarts.",
		})
	default:
		checks = append(checks, statusCheck{
			ID:     "requirements_store",
			Status: "warn",
			Label:  "Requirement persistence",
			Detail: mode,
		})
	}

	respondJSON(w, http.StatusOK, statusResponse{
		ModelProvider:       provider,
		RequirementsStore:   mode,
		SessionHistoryLimit: s.cfg.SessionHistoryLimit,
		ModelTimeoutMS:      s.cfg.ModelTimeout.Milliseconds(),
		Checks:              checks,
	})
}

func (s *Server) modelChecks(provider string) []statusCheck {
	keys := []struct {
		provider string
		env      string
		value    string
	}{
		{"openai", "OPENAI_API_KEY", s.cfg.OpenAIAPIKey},
		{"anthropic", "ANTHROPIC_API_KEY", s.cfg.AnthropicAPIKey},
		{"gemini", "GEMINI_API_KEY", s.cfg.GeminiAPIKey},
		{"http", "MODEL_HTTP_URL", s.cfg.ModelHTTPURL},
	}

	switch provider {
	case "mock":
		return []statusCheck{{
			ID:     "model_provider",
			Status: "warn",
			Label:  "Model backend is mock",
			Detail: "Replies follow a fixed script.",
			Fix:    "Set MODEL_PROVIDER and the matching API key.",
		}}
	case "auto":
		for _, k := range keys {
			if strings.TrimSpace(k.value) != "" {
				return []statusCheck{{
					ID:     "model_provider",
					Status: "ok",
					Label:  "Model backend",
					Detail: "auto: " + k.provider,
				}}
			}
		}
		return []statusCheck{{
			ID:     "model_provider",
			Status: "warn",
			Label:  "Model backend",
			Detail: "auto: no credentials found, using mock",
			Fix:    "Set OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY or MODEL_HTTP_URL.",
		}}
	}

	for _, k := range keys {
		if k.provider != provider {
			continue
		}
		if strings.TrimSpace(k.value) == "" {
			return []statusCheck{{
				ID:     "model_provider",
				Status: "error",
				Label:  "Model backend",
				Detail: k.env + " is not set",
				Fix:    "Set " + k.env + " or switch MODEL_PROVIDER.",
			}}
		}
		return []statusCheck{{
			ID:     "model_provider",
			Status: "ok",
			Label:  "Model backend",
			Detail: provider,
		}}
	}
	return []statusCheck{{
		ID:     "model_provider",
		Status: "error",
		Label:  "Model backend",
		Detail: "unknown provider " + provider,
	}}
}
