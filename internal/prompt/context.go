package prompt

import (
	"fmt"
	"strings"

	"github.com/ent0n29/sourcebot/internal/brain"
	"github.com/ent0n29/sourcebot/internal/protocol"
)

// RecentTurns is how many history turns are summarized and replayed to the model.
const RecentTurns = 10

// BuildContext renders the newly attached files and the most recent turns
// into a fragment appended to the system preamble.
func BuildContext(history []protocol.Turn, files []protocol.Document) string {
	var b strings.Builder

	if len(files) > 0 {
		b.WriteString("\n\nUser has provided the following files:\n")
		for _, f := range files {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Kind)
		}
	}

	recent := Recent(history, RecentTurns)
	if len(recent) > 0 {
		b.WriteString("\n\nConversation context:\n")
		for _, t := range recent {
			switch {
			case t.Role == protocol.RoleUser && t.User != nil:
				fmt.Fprintf(&b, "User: %s\n", t.User.Content)
			case t.Role == protocol.RoleAssistant && t.Assistant != nil:
				fmt.Fprintf(&b, "Assistant: %s\n", describeAssistant(*t.Assistant))
			}
		}
	}

	return b.String()
}

// Recent returns the last n turns without copying.
func Recent(history []protocol.Turn, n int) []protocol.Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func describeAssistant(t protocol.AssistantTurn) string {
	switch t.Type {
	case protocol.KindPills:
		return fmt.Sprintf("%s [Pills: %s]", t.Content, strings.Join(t.Pills, ", "))
	case protocol.KindCard:
		var summary []string
		if t.Card != nil {
			summary = t.Card.Summary
		}
		return fmt.Sprintf("%s [Summary Card: %s]", t.Content, strings.Join(summary, "; "))
	default:
		return t.Content
	}
}

// flatten renders an assistant turn as the plain content block replayed to
// the model, noting which options it offered.
func flatten(t protocol.AssistantTurn) string {
	switch t.Type {
	case protocol.KindPills:
		return t.Content + " [Pills: " + strings.Join(t.Pills, ", ") + "]"
	case protocol.KindCard:
		return t.Content + " [Summary Card Shown]"
	default:
		return t.Content
	}
}

// IsEditRequest reports whether the user text, ignoring surrounding space,
// asks to edit the summary.
func IsEditRequest(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), protocol.PillEdit)
}

// Compose assembles the model request for the turn that was just appended to
// history. files are the documents attached to that turn.
func Compose(sessionID string, history []protocol.Turn, text string, files []protocol.Document) brain.Request {
	instructions := System + BuildContext(history, files)
	if IsEditRequest(text) {
		instructions += "\n\n" + EditMode
	}

	recent := Recent(history, RecentTurns)
	messages := make([]brain.Message, 0, len(recent))
	for _, t := range recent {
		switch {
		case t.Role == protocol.RoleUser && t.User != nil:
			messages = append(messages, brain.Message{
				Role:   protocol.RoleUser,
				Text:   userText(*t.User),
				Images: t.User.Images,
			})
		case t.Role == protocol.RoleAssistant && t.Assistant != nil:
			messages = append(messages, brain.Message{
				Role: protocol.RoleAssistant,
				Text: flatten(*t.Assistant),
			})
		}
	}

	return brain.Request{
		SessionID:    sessionID,
		Instructions: instructions,
		Messages:     messages,
	}
}

// userText inlines attached document bodies after the typed message.
func userText(u protocol.UserTurn) string {
	if len(u.Documents) == 0 {
		return u.Content
	}
	var b strings.Builder
	b.WriteString(u.Content)
	for _, d := range u.Documents {
		fmt.Fprintf(&b, "\n\n--- %s (%s) ---\n%s", d.Name, d.Kind, d.Content)
	}
	return b.String()
}
