package protocol

import (
	"encoding/json"
	"slices"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind identifies assistant turn variants.
type Kind string

const (
	KindText  Kind = "text"
	KindPills Kind = "pills"
	KindCard  Kind = "card"
)

// AttachmentKind is the enumerated type of a card attachment.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// DocumentKind is the declared type of a user-supplied document.
type DocumentKind string

const (
	DocumentTXT DocumentKind = "txt"
	DocumentCSV DocumentKind = "csv"
)

const (
	PillEdit   = "Edit"
	PillSubmit = "Submit"
)

// CardPills is the only legal pill set on a summary card.
var CardPills = []string{PillEdit, PillSubmit}

// Document is a text file attached to a user turn.
type Document struct {
	Name    string       `json:"name"`
	Content string       `json:"content"`
	Kind    DocumentKind `json:"kind"`
}

// UnmarshalJSON accepts the legacy "type" key as an alias for "kind".
func (d *Document) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name    string       `json:"name"`
		Content string       `json:"content"`
		Kind    DocumentKind `json:"kind"`
		Type    DocumentKind `json:"type"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Name = wire.Name
	d.Content = wire.Content
	d.Kind = wire.Kind
	if d.Kind == "" {
		d.Kind = wire.Type
	}
	return nil
}

// UserTurn is the payload of a user-authored turn.
type UserTurn struct {
	Content   string     `json:"content"`
	Images    []string   `json:"images"`
	Documents []Document `json:"files"`
}

// Attachment is a user-provided reference shown on a summary card.
type Attachment struct {
	URL  string         `json:"url"`
	Type AttachmentKind `json:"type"`
	// Name is nil for unnamed attachments.
	Name *string `json:"name"`
}

// Card is the requirement summary carried by a card turn.
type Card struct {
	Summary     []string     `json:"summary"`
	Attachments []Attachment `json:"attachments"`
}

// AssistantTurn is one of three variants selected by Type. Pills and Active
// are meaningful for pills and card turns, Card only for card turns.
type AssistantTurn struct {
	Type    Kind
	Content string
	Pills   []string
	Card    *Card
	Active  bool
}

// TextTurn builds a plain text assistant turn.
func TextTurn(content string) AssistantTurn {
	return AssistantTurn{Type: KindText, Content: content}
}

// PillsTurn builds an active pills turn.
func PillsTurn(content string, pills ...string) AssistantTurn {
	return AssistantTurn{Type: KindPills, Content: content, Pills: pills, Active: true}
}

// CardTurn builds an active summary card turn with the Edit/Submit pills.
func CardTurn(content string, card Card) AssistantTurn {
	return AssistantTurn{Type: KindCard, Content: content, Card: &card, Pills: slices.Clone(CardPills), Active: true}
}

// HasPills reports whether the turn carries an option set.
func (t AssistantTurn) HasPills() bool {
	return t.Type == KindPills || t.Type == KindCard
}

// ShowPills reports whether the option set should still be rendered as clickable.
func (t AssistantTurn) ShowPills() bool {
	return t.HasPills() && t.Active
}

func (t AssistantTurn) MarshalJSON() ([]byte, error) {
	switch t.Type {
	case KindPills:
		return json.Marshal(struct {
			Type        Kind     `json:"type"`
			Content     string   `json:"content"`
			Pills       []string `json:"pills"`
			PillsActive bool     `json:"pillsActive"`
		}{t.Type, t.Content, nonNil(t.Pills), t.Active})
	case KindCard:
		card := Card{}
		if t.Card != nil {
			card = *t.Card
		}
		card.Summary = nonNil(card.Summary)
		return json.Marshal(struct {
			Type        Kind     `json:"type"`
			Content     string   `json:"content"`
			Card        Card     `json:"card"`
			Pills       []string `json:"pills"`
			PillsActive bool     `json:"pillsActive"`
		}{t.Type, t.Content, card, nonNil(t.Pills), t.Active})
	default:
		return json.Marshal(struct {
			Type    Kind   `json:"type"`
			Content string `json:"content"`
		}{t.Type, t.Content})
	}
}

// Clone returns a deep copy.
func (t AssistantTurn) Clone() AssistantTurn {
	out := t
	out.Pills = slices.Clone(t.Pills)
	if t.Card != nil {
		c := Card{
			Summary:     slices.Clone(t.Card.Summary),
			Attachments: slices.Clone(t.Card.Attachments),
		}
		out.Card = &c
	}
	return out
}

// Turn is a single history entry; exactly one of User or Assistant is set,
// matching Role.
type Turn struct {
	Role      Role
	User      *UserTurn
	Assistant *AssistantTurn
}

// NewUserTurn wraps a user payload.
func NewUserTurn(u UserTurn) Turn {
	return Turn{Role: RoleUser, User: &u}
}

// NewAssistantTurn wraps an assistant payload.
func NewAssistantTurn(a AssistantTurn) Turn {
	return Turn{Role: RoleAssistant, Assistant: &a}
}

// Clone returns a deep copy so callers cannot mutate stored history.
func (t Turn) Clone() Turn {
	out := Turn{Role: t.Role}
	if t.User != nil {
		u := *t.User
		u.Images = slices.Clone(t.User.Images)
		u.Documents = slices.Clone(t.User.Documents)
		out.User = &u
	}
	if t.Assistant != nil {
		a := t.Assistant.Clone()
		out.Assistant = &a
	}
	return out
}

func (t Turn) MarshalJSON() ([]byte, error) {
	switch {
	case t.Role == RoleUser && t.User != nil:
		return json.Marshal(struct {
			Role Role   `json:"role"`
			Type string `json:"type"`
			UserTurn
		}{RoleUser, "user", *t.User})
	case t.Role == RoleAssistant && t.Assistant != nil:
		body, err := t.Assistant.MarshalJSON()
		if err != nil {
			return nil, err
		}
		// Splice the role into the variant object.
		return append([]byte(`{"role":"assistant",`), body[1:]...), nil
	default:
		return json.Marshal(struct {
			Role Role `json:"role"`
		}{t.Role})
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
