package brain

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

const defaultOpenAIModel = "gpt-4o-2024-08-06"

// OpenAIModel calls Chat Completions with a strict JSON schema response format.
type OpenAIModel struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewOpenAIModel(cfg Config) *OpenAIModel {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	// Retries are disabled: one failed call yields one fallback turn.
	opts = append(opts, option.WithMaxRetries(0))
	return &OpenAIModel{
		client:      openai.NewClient(opts...),
		model:       orDefault(cfg.OpenAIModel, defaultOpenAIModel),
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
	}
}

func (m *OpenAIModel) Generate(ctx context.Context, req Request) (Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: openAIMessages(req),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   protocol.SchemaName,
					Schema: protocol.ResponseJSONSchema(),
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if m.temperature > 0 {
		params.Temperature = openai.Float(m.temperature)
	}
	if m.maxTokens > 0 {
		params.MaxTokens = openai.Int(m.maxTokens)
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return Reply{}, fmt.Errorf("openai: %w: no choices", ErrEmptyReply)
	}
	msg := completion.Choices[0].Message
	if msg.Refusal != "" {
		return Reply{}, fmt.Errorf("openai refused: %s", msg.Refusal)
	}
	if msg.Content == "" {
		return Reply{}, fmt.Errorf("openai: %w", ErrEmptyReply)
	}
	return Reply{Raw: msg.Content}, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	out = append(out, openai.SystemMessage(req.Instructions))
	for _, msg := range req.Messages {
		switch msg.Role {
		case protocol.RoleUser:
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(msg.Text)}
			for _, img := range msg.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img}))
			}
			out = append(out, openai.UserMessage(parts))
		case protocol.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Text))
		}
	}
	return out
}
