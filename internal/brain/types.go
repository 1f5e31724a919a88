// Package brain invokes the generative model behind the dialogue.
package brain

import (
	"context"
	"errors"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

// ErrUpstream marks any failure to obtain a usable reply from the model.
var ErrUpstream = errors.New("upstream failure")

// ErrEmptyReply is returned when the model answers with no content.
var ErrEmptyReply = errors.New("empty model reply")

// Message is one role-tagged content block.
type Message struct {
	Role protocol.Role `json:"role"`
	Text string        `json:"text"`
	// Images are data URIs.
	Images []string `json:"images,omitempty"`
}

// Request is everything the model sees for one turn.
type Request struct {
	SessionID    string    `json:"session_id"`
	Instructions string    `json:"instructions"`
	Messages     []Message `json:"messages"`
}

// Reply carries the raw envelope JSON returned by the model.
type Reply struct {
	Raw string `json:"raw"`
}

// Model produces one structured reply per request.
type Model interface {
	Generate(ctx context.Context, req Request) (Reply, error)
}
