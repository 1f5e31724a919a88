package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/sourcebot/internal/policy"
	"github.com/ent0n29/sourcebot/internal/protocol"
	"github.com/ent0n29/sourcebot/internal/requirements"
)

// Frame types exchanged on the chat websocket.
const (
	FrameUserTurn      = "user_turn"
	FrameAssistantTurn = "assistant_turn"
	FrameErrorEvent    = "error_event"
)

type userTurnFrame struct {
	Type string `json:"type"`
	chatRequest
}

type assistantTurnFrame struct {
	Type       string                 `json:"type"`
	SessionID  string                 `json:"session_id"`
	RequestID  string                 `json:"request_id"`
	Response   protocol.AssistantTurn `json:"response"`
	Error      string                 `json:"error,omitempty"`
	Submission *requirements.Record   `json:"submission,omitempty"`
}

type errorEventFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	Retryable bool   `json:"retryable"`
}

const (
	wsReadLimit   = maxBodyBytes
	wsIdleTimeout = 120 * time.Second
	wsQueueSize   = 16
)

func parseUserTurnFrame(data []byte) (userTurnFrame, error) {
	var f userTurnFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return userTurnFrame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type != FrameUserTurn {
		return userTurnFrame{}, fmt.Errorf("unsupported frame type %q", f.Type)
	}
	return f, nil
}

func frameTypeOf(v any) string {
	switch m := v.(type) {
	case assistantTurnFrame:
		return m.Type
	case errorEventFrame:
		return m.Type
	default:
		return "unknown"
	}
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.turns == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "dialogue not configured")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	log := s.logger.With(zap.String("session_id", sessionID))
	log.Debug("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan userTurnFrame, wsQueueSize)
	outbound := make(chan any, wsQueueSize)

	// Turns for one connection run one at a time, in arrival order.
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		for frame := range inbound {
			// Frames still queued after a disconnect are dropped untouched.
			if ctx.Err() != nil {
				return
			}
			in := frame.input()
			in.SessionID = sessionID
			res, err := s.turns.HandleTurn(ctx, in)
			if err != nil && ctx.Err() != nil {
				return
			}
			var out any
			switch {
			case err == nil:
				out = assistantTurnFrame{
					Type:       FrameAssistantTurn,
					SessionID:  res.SessionID,
					RequestID:  res.RequestID,
					Response:   res.Turn,
					Error:      res.Diagnostic,
					Submission: res.Submission,
				}
			default:
				out = s.errorFrame(log, sessionID, err)
			}
			select {
			case <-ctx.Done():
				return
			case outbound <- out:
			}
		}
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(writeDeadline())
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				s.observeFrame("outbound", frameTypeOf(msg))
			}
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		frame, err := parseUserTurnFrame(data)
		if err != nil {
			s.observeFrame("inbound", "invalid")
			select {
			case outbound <- errorEventFrame{
				Type:      FrameErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Detail:    err.Error(),
			}:
			default:
				// Drop rather than block the reader when the writer is saturated.
			}
			continue
		}
		s.observeFrame("inbound", FrameUserTurn)

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- frame:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	log.Debug("ws disconnected")
}

func (s *Server) errorFrame(log *zap.Logger, sessionID string, err error) errorEventFrame {
	var verr *policy.ValidationError
	if errors.As(err, &verr) {
		return errorEventFrame{
			Type:      FrameErrorEvent,
			SessionID: sessionID,
			Code:      verr.Reason,
			Detail:    verr.Message,
		}
	}
	log.Error("ws turn failed", zap.Error(err))
	return errorEventFrame{
		Type:      FrameErrorEvent,
		SessionID: sessionID,
		Code:      "internal_error",
		Detail:    "failed to process message",
		Retryable: true,
	}
}

func (s *Server) observeFrame(direction, frameType string) {
	if s.metrics == nil {
		return
	}
	s.metrics.WSMessages.WithLabelValues(direction, frameType).Inc()
}
