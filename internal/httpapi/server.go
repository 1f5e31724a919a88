package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/config"
	"github.com/ent0n29/sourcebot/internal/dialogue"
	"github.com/ent0n29/sourcebot/internal/observability"
	"github.com/ent0n29/sourcebot/internal/protocol"
	"github.com/ent0n29/sourcebot/internal/requirements"
)

// maxBodyBytes bounds a chat request: a few encoded images plus documents.
const maxBodyBytes = 16 << 20

// TurnHandler runs dialogue turns and exposes session history.
type TurnHandler interface {
	HandleTurn(ctx context.Context, in dialogue.TurnInput) (dialogue.Result, error)
	History(ctx context.Context, sessionID string) ([]protocol.Turn, error)
}

type Server struct {
	cfg          config.Config
	turns        TurnHandler
	requirements requirements.Store
	metrics      *observability.Metrics
	stages       *observability.StageWindow
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

func New(
	cfg config.Config,
	turns TurnHandler,
	reqs requirements.Store,
	metrics *observability.Metrics,
	stages *observability.StageWindow,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:          cfg,
		turns:        turns,
		requirements: reqs,
		metrics:      metrics,
		stages:       stages,
		logger:       logger.Named("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat", s.handleHistory)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/requirements", s.handleListRequirements)
	r.Get("/v1/requirements/{id}", s.handleGetRequirements)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.turns == nil {
		respondError(w, http.StatusServiceUnavailable, "unavailable", "dialogue not configured")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"model_provider":     s.cfg.ModelProvider,
		"requirements_store": storeMode(s.requirements),
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func storeMode(store requirements.Store) string {
	switch store.(type) {
	case nil:
		return "disabled"
	case *requirements.PostgresStore:
		return "postgres"
	case *requirements.MemoryStore:
		return "in-memory"
	default:
		return "custom"
	}
}

func writeDeadline() time.Time {
	return time.Now().Add(10 * time.Second)
}
