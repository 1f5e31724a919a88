package protocol

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAssistantTurnText(t *testing.T) {
	turn, err := DecodeAssistantTurn([]byte(`{"type":"text","content":"Hello there"}`))
	require.NoError(t, err)
	assert.Equal(t, KindText, turn.Type)
	assert.Equal(t, "Hello there", turn.Content)
	assert.False(t, turn.HasPills())
}

func TestDecodeAssistantTurnPillsDefaultsActive(t *testing.T) {
	raw := `{"type":"pills","content":"Would you like any customization?","pills":["Custom Length","Custom Branding","No Customization"]}`
	turn, err := DecodeAssistantTurn([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, KindPills, turn.Type)
	assert.Equal(t, []string{"Custom Length", "Custom Branding", "No Customization"}, turn.Pills)
	assert.True(t, turn.Active)
	assert.True(t, turn.ShowPills())
}

func TestDecodeAssistantTurnPillsRejectsEmptyList(t *testing.T) {
	for _, raw := range []string{
		`{"type":"pills","content":"x","pills":[]}`,
		`{"type":"pills","content":"x"}`,
		`{"type":"pills","content":"x","pills":null}`,
	} {
		_, err := DecodeAssistantTurn([]byte(raw))
		assert.ErrorIs(t, err, ErrSchemaViolation, raw)
	}
}

func TestDecodeAssistantTurnCardPillSet(t *testing.T) {
	base := `{"type":"card","content":"Here's a summary:","card":{"summary":["Product: USB-C Cables","Quantity: 5000 units"],"attachments":null},"pills":%s}`

	turn, err := DecodeAssistantTurn([]byte(fmt.Sprintf(base, `["Edit","Submit"]`)))
	require.NoError(t, err)
	assert.Equal(t, KindCard, turn.Type)
	require.NotNil(t, turn.Card)
	assert.Equal(t, []string{"Product: USB-C Cables", "Quantity: 5000 units"}, turn.Card.Summary)
	assert.Nil(t, turn.Card.Attachments)
	assert.True(t, turn.Active)

	for _, pills := range []string{`["Edit"]`, `["Edit","Submit","Extra"]`, `["Submit","Edit"]`, `[]`} {
		_, err := DecodeAssistantTurn([]byte(fmt.Sprintf(base, pills)))
		assert.ErrorIs(t, err, ErrSchemaViolation, pills)
	}
}

func TestDecodeAssistantTurnCardAttachments(t *testing.T) {
	raw := `{"type":"card","content":"Summary","card":{"summary":["Product: mugs"],"attachments":[
		{"url":"logo.png","type":"image","name":"Company Logo"},
		{"url":"spec.csv","type":"file","name":null}
	]},"pills":["Edit","Submit"]}`
	turn, err := DecodeAssistantTurn([]byte(raw))
	require.NoError(t, err)
	require.Len(t, turn.Card.Attachments, 2)
	require.NotNil(t, turn.Card.Attachments[0].Name)
	assert.Equal(t, "Company Logo", *turn.Card.Attachments[0].Name)
	assert.Equal(t, AttachmentFile, turn.Card.Attachments[1].Type)
	assert.Nil(t, turn.Card.Attachments[1].Name)

	bad := `{"type":"card","content":"Summary","card":{"summary":[],"attachments":[{"url":"x","type":"video","name":null}]},"pills":["Edit","Submit"]}`
	_, err = DecodeAssistantTurn([]byte(bad))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestDecodeAssistantTurnRejectsUnknownOrMissingTag(t *testing.T) {
	for _, raw := range []string{
		`{"content":"no tag"}`,
		`{"type":"carousel","content":"x"}`,
		`{"type":7,"content":"x"}`,
		`{"type":"text"}`,
	} {
		_, err := DecodeAssistantTurn([]byte(raw))
		assert.ErrorIs(t, err, ErrSchemaViolation, raw)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	turn, err := DecodeEnvelope([]byte(`{"response":{"type":"text","content":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", turn.Content)

	_, err = DecodeEnvelope([]byte(`{"type":"text","content":"hi"}`))
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = DecodeEnvelope([]byte("  "))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestTurnMarshalJSON(t *testing.T) {
	pills := NewAssistantTurn(PillsTurn("Pick one", "A", "B"))
	body, err := json.Marshal(pills)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","type":"pills","content":"Pick one","pills":["A","B"],"pillsActive":true}`, string(body))

	user := NewUserTurn(UserTurn{Content: "hello"})
	body, err = json.Marshal(user)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","type":"user","content":"hello","images":null,"files":null}`, string(body))

	text := NewAssistantTurn(TextTurn("ok"))
	body, err = json.Marshal(text)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","type":"text","content":"ok"}`, string(body))
}

func TestDocumentAcceptsLegacyTypeKey(t *testing.T) {
	var d Document
	require.NoError(t, json.Unmarshal([]byte(`{"name":"specs.csv","content":"a,b","type":"csv"}`), &d))
	assert.Equal(t, DocumentCSV, d.Kind)
}

func TestTurnCloneIsDeep(t *testing.T) {
	orig := NewAssistantTurn(CardTurn("s", Card{Summary: []string{"Product: x"}}))
	cp := orig.Clone()
	cp.Assistant.Active = false
	cp.Assistant.Card.Summary[0] = "changed"
	assert.True(t, orig.Assistant.Active)
	assert.Equal(t, "Product: x", orig.Assistant.Card.Summary[0])
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageSummarizing, StageOf(CardTurn("x", Card{})))
	assert.Equal(t, StageAssessing, StageOf(TextTurn("What kind of electronics?")))
	assert.Equal(t, StageCollecting, StageOf(TextTurn("How many units?")))
}

func TestResponseJSONSchemaIsStrict(t *testing.T) {
	schema := ResponseJSONSchema()
	assert.Equal(t, false, schema["additionalProperties"])
	assert.Equal(t, []string{"response"}, schema["required"])
	props := schema["properties"].(map[string]any)
	variants := props["response"].(map[string]any)["anyOf"].([]any)
	assert.Len(t, variants, 3)
	_, err := json.Marshal(schema)
	require.NoError(t, err)
}
