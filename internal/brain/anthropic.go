package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicModel calls the Messages API. Without a constrained response
// format it relies on the output section of the instructions, and the reply
// is still validated downstream.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropicModel(cfg Config) *AnthropicModel {
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey), option.WithMaxRetries(0)),
		model:       orDefault(cfg.AnthropicModel, defaultAnthropicModel),
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (m *AnthropicModel) Generate(ctx context.Context, req Request) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.Instructions}},
		Messages:  anthropicMessages(req),
	}
	if m.temperature > 0 {
		params.Temperature = anthropic.Float(m.temperature)
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		b.WriteString(block.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return Reply{}, fmt.Errorf("anthropic: %w", ErrEmptyReply)
	}
	return Reply{Raw: extractJSONObject(text)}, nil
}

// anthropicMessages converts the replay window. The conversation must open
// with a user message, so leading assistant blocks are dropped.
func anthropicMessages(req Request) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case protocol.RoleUser:
			blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Text)}
			for _, img := range msg.Images {
				mediaType, payload, err := splitDataURI(img)
				if err != nil {
					continue
				}
				blocks = append(blocks, anthropic.NewImageBlockBase64(mediaType, payload))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))
		case protocol.RoleAssistant:
			if len(out) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Text)))
		}
	}
	return out
}
