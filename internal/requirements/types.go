// Package requirements turns submitted summary cards into structured
// sourcing requirements and stores them.
package requirements

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record has the requested ID.
var ErrNotFound = errors.New("requirement record not found")

// Set is the structured content of one summary card.
type Set struct {
	Product       string   `json:"product,omitempty"`
	Quantity      string   `json:"quantity,omitempty"`
	Customization []string `json:"customization,omitempty"`
	LeadTime      string   `json:"leadTime,omitempty"`
	Incoterms     string   `json:"incoterms,omitempty"`
	Shipping      string   `json:"shipping,omitempty"`
	Raw           []string `json:"raw"`
}

// Record is one submitted requirement set.
type Record struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Requirements Set       `json:"requirements"`
	Attachments  []string  `json:"attachments,omitempty"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// Store persists submitted requirement records.
type Store interface {
	Save(ctx context.Context, record Record) (Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// List returns the newest records first. An empty sessionID lists all.
	List(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Close() error
}
