package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/dialogue"
	"github.com/ent0n29/sourcebot/internal/policy"
	"github.com/ent0n29/sourcebot/internal/protocol"
	"github.com/ent0n29/sourcebot/internal/requirements"
	"github.com/ent0n29/sourcebot/internal/session"
)

type chatRequest struct {
	Message        string              `json:"message"`
	Pill           string              `json:"pill,omitempty"`
	SessionID      string              `json:"sessionId,omitempty"`
	ConversationID string              `json:"conversationId,omitempty"`
	Images         []string            `json:"images,omitempty"`
	Files          []protocol.Document `json:"files,omitempty"`
	Documents      []protocol.Document `json:"documents,omitempty"`
}

// input resolves the session alias, a pill click and the document alias.
func (r chatRequest) input() dialogue.TurnInput {
	sessionID := strings.TrimSpace(r.SessionID)
	if sessionID == "" {
		sessionID = strings.TrimSpace(r.ConversationID)
	}
	message := r.Message
	if message == "" && r.Pill != "" {
		message = dialogue.PillText(r.Pill)
	}
	docs := r.Files
	if len(docs) == 0 {
		docs = r.Documents
	}
	return dialogue.TurnInput{
		SessionID: sessionID,
		Message:   message,
		Images:    r.Images,
		Documents: docs,
	}
}

type chatResponse struct {
	Response       protocol.AssistantTurn `json:"response"`
	SessionID      string                 `json:"sessionId"`
	ConversationID string                 `json:"conversationId"`
	RequestID      string                 `json:"requestId"`
	Error          string                 `json:"error,omitempty"`
	Submission     *requirements.Record   `json:"submission,omitempty"`
}

type historyResponse struct {
	SessionID      string          `json:"sessionId"`
	ConversationID string          `json:"conversationId"`
	Messages       []protocol.Turn `json:"messages"`
	Session        *session.Info   `json:"session,omitempty"`
}

type sessionInspector interface {
	SessionInfo(sessionID string) (session.Info, bool)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.turns == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dialogue not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request_too_large", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.turns.HandleTurn(r.Context(), req.input())
	if err != nil {
		var verr *policy.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Reason, verr.Message)
			return
		}
		if r.Context().Err() != nil {
			s.logger.Debug("client gone before turn started", zap.Error(err))
			return
		}
		s.logger.Error("turn failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		Response:       res.Turn,
		SessionID:      res.SessionID,
		ConversationID: res.SessionID,
		RequestID:      res.RequestID,
		Error:          res.Diagnostic,
		Submission:     res.Submission,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.turns == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dialogue not configured")
		return
	}

	q := r.URL.Query()
	sessionID := strings.TrimSpace(q.Get("sessionId"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(q.Get("conversationId"))
	}
	history, err := s.turns.History(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("history lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to load history")
		return
	}
	if sessionID == "" {
		sessionID = session.DefaultID
	}
	out := historyResponse{
		SessionID:      sessionID,
		ConversationID: sessionID,
		Messages:       history,
	}
	if insp, ok := s.turns.(sessionInspector); ok {
		if info, found := insp.SessionInfo(sessionID); found {
			out.Session = &info
		}
	}
	respondJSON(w, http.StatusOK, out)
}
