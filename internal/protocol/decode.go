package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrSchemaViolation marks a structurally invalid model reply.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrMalformedPayload marks a reply that is not JSON at all.
	ErrMalformedPayload = errors.New("malformed payload")
)

// Envelope is the wrapper object every model reply arrives in.
type Envelope struct {
	Response json.RawMessage `json:"response"`
}

type wireAttachment struct {
	URL  *string         `json:"url"`
	Type *AttachmentKind `json:"type"`
	Name *string         `json:"name"`
}

type wireCard struct {
	Summary     *[]string        `json:"summary"`
	Attachments []wireAttachment `json:"attachments"`
}

type wireTurn struct {
	Type        *Kind     `json:"type"`
	Content     *string   `json:"content"`
	Pills       *[]string `json:"pills"`
	Card        *wireCard `json:"card"`
	PillsActive *bool     `json:"pillsActive"`
}

// DecodeEnvelope unwraps {"response": {...}} and decodes the inner turn.
func DecodeEnvelope(raw []byte) (AssistantTurn, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return AssistantTurn{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return AssistantTurn{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return AssistantTurn{}, violation("missing response object")
	}
	return DecodeAssistantTurn(env.Response)
}

// DecodeAssistantTurn classifies a bare turn object into one of the three
// variants, or fails with ErrSchemaViolation. It has no side effects.
func DecodeAssistantTurn(raw []byte) (AssistantTurn, error) {
	var w wireTurn
	if err := json.Unmarshal(raw, &w); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return AssistantTurn{}, violation("field %q has wrong type", typeErr.Field)
		}
		return AssistantTurn{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if w.Type == nil {
		return AssistantTurn{}, violation("missing type tag")
	}
	if w.Content == nil {
		return AssistantTurn{}, violation("%s: missing content", *w.Type)
	}

	active := true
	if w.PillsActive != nil {
		active = *w.PillsActive
	}

	switch *w.Type {
	case KindText:
		return TextTurn(*w.Content), nil
	case KindPills:
		if w.Pills == nil || len(*w.Pills) == 0 {
			return AssistantTurn{}, violation("pills: option list must be non-empty")
		}
		for i, p := range *w.Pills {
			if strings.TrimSpace(p) == "" {
				return AssistantTurn{}, violation("pills: option %d is blank", i)
			}
		}
		turn := PillsTurn(*w.Content, slices.Clone(*w.Pills)...)
		turn.Active = active
		return turn, nil
	case KindCard:
		if w.Pills == nil || !slices.Equal(*w.Pills, CardPills) {
			return AssistantTurn{}, violation("card: pills must be exactly %q", CardPills)
		}
		card, err := decodeCard(w.Card)
		if err != nil {
			return AssistantTurn{}, err
		}
		turn := CardTurn(*w.Content, card)
		turn.Active = active
		return turn, nil
	default:
		return AssistantTurn{}, violation("unknown type tag %q", *w.Type)
	}
}

func decodeCard(w *wireCard) (Card, error) {
	if w == nil {
		return Card{}, violation("card: missing card object")
	}
	if w.Summary == nil {
		return Card{}, violation("card: missing summary")
	}
	card := Card{Summary: slices.Clone(*w.Summary)}
	if w.Attachments == nil {
		return card, nil
	}
	card.Attachments = make([]Attachment, 0, len(w.Attachments))
	for i, a := range w.Attachments {
		if a.URL == nil {
			return Card{}, violation("card: attachment %d missing url", i)
		}
		if a.Type == nil {
			return Card{}, violation("card: attachment %d missing type", i)
		}
		switch *a.Type {
		case AttachmentImage, AttachmentFile:
		default:
			return Card{}, violation("card: attachment %d has unknown type %q", i, *a.Type)
		}
		card.Attachments = append(card.Attachments, Attachment{URL: *a.URL, Type: *a.Type, Name: a.Name})
	}
	return card, nil
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}
