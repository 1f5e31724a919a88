package brain

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/sourcebot/internal/protocol"
)

func TestNewSelectsProvider(t *testing.T) {
	m, err := New(Config{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", ProviderName(m))

	m, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "mock", ProviderName(m), "auto without credentials")

	m, err = New(Config{AnthropicAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", ProviderName(m))

	m, err = New(Config{OpenAIAPIKey: "k", AnthropicAPIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", ProviderName(m))

	m, err = New(Config{Provider: "HTTP", HTTPURL: "http://example.test"})
	require.NoError(t, err)
	assert.Equal(t, "http", ProviderName(m))

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err)
	_, err = New(Config{Provider: "nope"})
	assert.Error(t, err)
}

func TestOpenAIModelSendsStrictSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		content := `{"response":{"type":"text","content":"What do you need?"}}`
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-2024-08-06",
			"choices": []any{map[string]any{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	defer srv.Close()

	m := NewOpenAIModel(Config{OpenAIAPIKey: "test", OpenAIBaseURL: srv.URL + "/", Temperature: 0.7, MaxTokens: 1000})
	reply, err := m.Generate(context.Background(), Request{
		Instructions: "be helpful",
		Messages: []Message{
			{Role: protocol.RoleUser, Text: "I need cables"},
		},
	})
	require.NoError(t, err)

	turn, err := protocol.DecodeEnvelope([]byte(reply.Raw))
	require.NoError(t, err)
	assert.Equal(t, protocol.KindText, turn.Type)

	format, _ := got["response_format"].(map[string]any)
	require.NotNil(t, format)
	assert.Equal(t, "json_schema", format["type"])
	schema, _ := format["json_schema"].(map[string]any)
	assert.Equal(t, protocol.SchemaName, schema["name"])
	assert.Equal(t, true, schema["strict"])

	msgs, _ := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIModelUpstreamErrorIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewOpenAIModel(Config{OpenAIAPIKey: "test", OpenAIBaseURL: srv.URL + "/"})
	_, err := m.Generate(context.Background(), Request{Instructions: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestHTTPModelPlainEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "s1", req.SessionID)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"response":{"type":"text","content":"hi"}}`)
	}))
	defer srv.Close()

	reply, err := NewHTTPModel(srv.URL, 0).Generate(context.Background(), Request{SessionID: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"type":"text","content":"hi"}}`, reply.Raw)
}

func TestHTTPModelWrappedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"text": `{"response":{"type":"text","content":"wrapped"}}`,
		})
	}))
	defer srv.Close()

	reply, err := NewHTTPModel(srv.URL, 0).Generate(context.Background(), Request{})
	require.NoError(t, err)
	turn, err := protocol.DecodeEnvelope([]byte(reply.Raw))
	require.NoError(t, err)
	assert.Equal(t, "wrapped", turn.Content)
}

func TestHTTPModelStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPModel(srv.URL, 0).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestConsumeStreamingSSE(t *testing.T) {
	stream := strings.NewReader(strings.Join([]string{
		": keepalive",
		"",
		`data: {"delta":"{\"response\":"}`,
		"",
		`data: {"delta":"{\"type\":\"text\",\"content\":\"ok\"}}"}`,
		"",
		"data: [DONE]",
		"",
	}, "\n"))

	out, err := consumeStreaming(stream)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"type":"text","content":"ok"}}`, out)
}

func TestConsumeStreamingNDJSON(t *testing.T) {
	stream := strings.NewReader(strings.Join([]string{
		`{"delta":"Hi"}`,
		" there",
		"[DONE]",
		"ignored",
	}, "\n"))

	out, err := consumeStreaming(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out)
}

func TestSplitDataURI(t *testing.T) {
	mediaType, payload, err := splitDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mediaType)
	assert.Equal(t, "aGVsbG8=", payload)

	_, data, err := decodeDataURI("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	for _, bad := range []string{"image/png;base64,xx", "data:image/png,xx", "data:image/png;base64"} {
		_, _, err := splitDataURI(bad)
		assert.ErrorIs(t, err, errBadDataURI, bad)
	}

	_, _, err = decodeDataURI("data:image/png;base64,!!!")
	assert.ErrorIs(t, err, errBadDataURI)
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSONObject("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, extractJSONObject(`Sure: {"a":{"b":2}} done`))
	assert.Equal(t, "no json", extractJSONObject("  no json "))
}

func TestAnthropicMessagesDropLeadingAssistant(t *testing.T) {
	msgs := anthropicMessages(Request{Messages: []Message{
		{Role: protocol.RoleAssistant, Text: "stale"},
		{Role: protocol.RoleUser, Text: "hi", Images: []string{"data:image/png;base64,aGVsbG8=", "bogus"}},
		{Role: protocol.RoleAssistant, Text: "hello"},
	}})
	require.Len(t, msgs, 2)
	assert.Len(t, msgs[0].Content, 2, "text plus one valid image")
}

func TestMockModelScriptedFlow(t *testing.T) {
	m := NewMockModel()
	ctx := context.Background()

	turn := mockTurn(t, m, Request{Messages: []Message{
		{Role: protocol.RoleUser, Text: "I need USB-C cables"},
	}})
	assert.Equal(t, protocol.KindPills, turn.Type)
	assert.True(t, turn.Active)

	turn = mockTurn(t, m, Request{Messages: []Message{
		{Role: protocol.RoleUser, Text: "I need USB-C cables"},
		{Role: protocol.RoleAssistant, Text: "q1"},
		{Role: protocol.RoleUser, Text: "100-1,000 units"},
		{Role: protocol.RoleAssistant, Text: "q2"},
		{Role: protocol.RoleUser, Text: "Within a month"},
	}})
	assert.Equal(t, protocol.KindCard, turn.Type)
	assert.Equal(t, protocol.CardPills, turn.Pills)
	assert.Equal(t, []string{"I need USB-C cables", "100-1,000 units", "Within a month"}, turn.Card.Summary)

	turn = mockTurn(t, m, Request{Messages: []Message{{Role: protocol.RoleUser, Text: "Submit the requirements"}}})
	assert.Equal(t, protocol.KindText, turn.Type)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := m.Generate(cancelled, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func mockTurn(t *testing.T, m *MockModel, req Request) protocol.AssistantTurn {
	t.Helper()
	reply, err := m.Generate(context.Background(), req)
	require.NoError(t, err)
	turn, err := protocol.DecodeEnvelope([]byte(reply.Raw))
	require.NoError(t, err)
	return turn
}

func TestStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHTTPModel(srv.URL, 0).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Equal(t, 0, StatusCode(context.DeadlineExceeded))

	m := NewOpenAIModel(Config{OpenAIAPIKey: "test", OpenAIBaseURL: srv.URL + "/"})
	_, err = m.Generate(context.Background(), Request{Instructions: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}
