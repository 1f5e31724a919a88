package brain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls GenerateContent with a JSON response MIME type. The
// client is created on first use.
type GeminiModel struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int32

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiModel(cfg Config) *GeminiModel {
	return &GeminiModel{
		apiKey:      cfg.GeminiAPIKey,
		model:       orDefault(cfg.GeminiModel, defaultGeminiModel),
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}
}

func (m *GeminiModel) init() error {
	m.once.Do(func() {
		m.client, m.initErr = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey:  m.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return m.initErr
}

func (m *GeminiModel) Generate(ctx context.Context, req Request) (Reply, error) {
	if err := m.init(); err != nil {
		return Reply{}, fmt.Errorf("create gemini client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.Instructions, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}
	if m.temperature > 0 {
		t := float32(m.temperature)
		config.Temperature = &t
	}
	if m.maxTokens > 0 {
		config.MaxOutputTokens = m.maxTokens
	}

	result, err := m.client.Models.GenerateContent(ctx, m.model, geminiContents(req), config)
	if err != nil {
		return Reply{}, fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(geminiText(result))
	if text == "" {
		return Reply{}, fmt.Errorf("gemini: %w", ErrEmptyReply)
	}
	return Reply{Raw: extractJSONObject(text)}, nil
}

func geminiContents(req Request) []*genai.Content {
	out := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case protocol.RoleUser:
			parts := []*genai.Part{{Text: msg.Text}}
			for _, img := range msg.Images {
				mediaType, data, err := decodeDataURI(img)
				if err != nil {
					continue
				}
				parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mediaType, Data: data}})
			}
			out = append(out, &genai.Content{Role: string(genai.RoleUser), Parts: parts})
		case protocol.RoleAssistant:
			out = append(out, &genai.Content{Role: string(genai.RoleModel), Parts: []*genai.Part{{Text: msg.Text}}})
		}
	}
	return out
}

// geminiText concatenates non-thought text parts of all candidates.
func geminiText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
