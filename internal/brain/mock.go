package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

// MockModel provides a deterministic sourcing dialogue when no model backend
// is configured. It asks two questions, then shows a summary card.
type MockModel struct{}

func NewMockModel() *MockModel { return &MockModel{} }

var mockQuestions = []protocol.AssistantTurn{
	protocol.PillsTurn("What quantity are you looking to source?",
		"Under 100 units", "100-1,000 units", "1,000-10,000 units", "Over 10,000 units"),
	protocol.PillsTurn("What is your target delivery timeframe?",
		"Within 2 weeks", "Within a month", "1-3 months", "Flexible"),
}

func (m *MockModel) Generate(ctx context.Context, req Request) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	default:
	}

	raw, err := json.Marshal(struct {
		Response protocol.AssistantTurn `json:"response"`
	}{buildMockTurn(req)})
	if err != nil {
		return Reply{}, fmt.Errorf("marshal mock reply: %w", err)
	}
	return Reply{Raw: string(raw)}, nil
}

func buildMockTurn(req Request) protocol.AssistantTurn {
	var userTexts []string
	asked := 0
	for _, msg := range req.Messages {
		switch msg.Role {
		case protocol.RoleUser:
			userTexts = append(userTexts, firstLine(msg.Text))
		case protocol.RoleAssistant:
			asked++
		}
	}

	last := ""
	if len(userTexts) > 0 {
		last = strings.TrimSpace(userTexts[len(userTexts)-1])
	}

	switch {
	case last == "":
		return protocol.TextTurn("What product or service are you looking to source?")
	case strings.EqualFold(last, protocol.PillSubmit), strings.EqualFold(last, "Submit the requirements"):
		return protocol.TextTurn("Thank you. Your requirements have been submitted and matching suppliers will be in touch shortly.")
	case strings.EqualFold(last, protocol.PillEdit):
		return protocol.TextTurn("Sure. Which part of the requirements would you like to change?")
	case asked < len(mockQuestions):
		return mockQuestions[asked].Clone()
	default:
		return protocol.CardTurn("Here is a summary of your requirements. Please review it.", protocol.Card{
			Summary: userTexts,
		})
	}
}

// firstLine drops inlined document bodies from a user block.
func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return line
}
