// Package session owns per-conversation turn history.
package session

import (
	"context"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

// DefaultID is used when a caller does not name a session.
const DefaultID = "default"

// DefaultHistoryLimit caps stored history per session.
const DefaultHistoryLimit = 50

// Store holds ordered turn history keyed by session id. Sessions are created
// lazily on first append. Implementations must be safe for concurrent use;
// serializing whole turns for one session is the caller's job.
type Store interface {
	// Get returns a copy of the history, or an empty slice for unknown ids.
	Get(ctx context.Context, sessionID string) ([]protocol.Turn, error)
	// AppendUser retires the most recent live pill set, then appends the turn.
	AppendUser(ctx context.Context, sessionID string, turn protocol.UserTurn) error
	// AppendAssistant appends the turn and trims the oldest turns beyond the limit.
	AppendAssistant(ctx context.Context, sessionID string, turn protocol.AssistantTurn) error
}
