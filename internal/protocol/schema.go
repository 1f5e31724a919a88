package protocol

import (
	"slices"
	"strings"
)

// SchemaName is the name under which the response schema is registered with providers.
const SchemaName = "chat_response"

// ResponseJSONSchema returns the JSON Schema of the reply envelope in the
// strict subset accepted by constrained-decoding providers: every property is
// required and nullable fields are expressed as type unions.
func ResponseJSONSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strList := map[string]any{"type": "array", "items": str}

	text := object(map[string]any{
		"type":    map[string]any{"type": "string", "enum": []string{string(KindText)}},
		"content": describe(str, "The chatbot's response text"),
	})
	pills := object(map[string]any{
		"type":    map[string]any{"type": "string", "enum": []string{string(KindPills)}},
		"content": describe(str, "The main message to display"),
		"pills":   describe(strList, "Clickable options for the user"),
	})
	attachment := object(map[string]any{
		"url":  describe(str, "URL or reference to the attachment"),
		"type": map[string]any{"type": "string", "enum": []string{string(AttachmentImage), string(AttachmentFile)}},
		"name": map[string]any{"type": []string{"string", "null"}, "description": "Name of the file"},
	})
	card := object(map[string]any{
		"type":    map[string]any{"type": "string", "enum": []string{string(KindCard)}},
		"content": describe(str, "Brief message before the card"),
		"card": object(map[string]any{
			"summary": describe(strList, "Bullet points of collected requirements"),
			"attachments": map[string]any{
				"type":        []string{"array", "null"},
				"items":       attachment,
				"description": "User-provided attachments",
			},
		}),
		"pills": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string", "enum": CardPills},
			"description": "Action buttons - always include both Edit and Submit",
		},
	})

	return object(map[string]any{
		"response": map[string]any{"anyOf": []any{text, pills, card}},
	})
}

func object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	slices.Sort(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func describe(base map[string]any, desc string) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["description"] = desc
	return out
}

// Stage labels where in the collection flow an assistant turn sits.
type Stage string

const (
	StageAssessing   Stage = "assessing"
	StageCollecting  Stage = "collecting"
	StageSummarizing Stage = "summarizing"
)

// StageOf classifies a turn by its shape first, then by content cues.
func StageOf(t AssistantTurn) Stage {
	if t.Type == KindCard {
		return StageSummarizing
	}
	lower := strings.ToLower(t.Content)
	switch {
	case strings.Contains(lower, "edit") || strings.Contains(lower, "submit"):
		return StageSummarizing
	case strings.Contains(lower, "tell me more") || strings.Contains(lower, "what kind of"):
		return StageAssessing
	default:
		return StageCollecting
	}
}
