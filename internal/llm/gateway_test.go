package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/RichardoC/simple-chatbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	calls    int
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

var testLog = []models.Message{
	{Role: models.RoleSystem, Content: "You are a helpful AI assistant."},
	{Role: models.RoleUser, Content: "hi"},
	{Role: models.RoleAssistant, Content: "hello"},
	{Role: models.RoleUser, Content: "how are you?"},
}

func TestCompleteSendsWholeLogWithFixedParameters(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "fine, thanks"}},
	}}
	g, err := New("", "", "", WithLLM(fake), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), testLog)
	require.NoError(t, err)
	assert.Equal(t, "fine, thanks", reply)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, DefaultModel, fake.opts.Model)
	assert.InDelta(t, 0.7, fake.opts.Temperature, 1e-9)
	assert.Equal(t, 512, fake.opts.MaxTokens)

	require.Len(t, fake.messages, len(testLog))
	wantRoles := []schema.ChatMessageType{
		schema.ChatMessageTypeSystem,
		schema.ChatMessageTypeHuman,
		schema.ChatMessageTypeAI,
		schema.ChatMessageTypeHuman,
	}
	for i, mc := range fake.messages {
		assert.Equal(t, wantRoles[i], mc.Role)
		require.Len(t, mc.Parts, 1)
		assert.Equal(t, llms.TextContent{Text: testLog[i].Content}, mc.Parts[0])
	}
}

func TestCompleteTranslatesProviderError(t *testing.T) {
	cause := errors.New("rate limited")
	fake := &fakeModel{err: cause}
	g, err := New("", "", "", WithLLM(fake))
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), testLog)
	assert.Empty(t, reply)

	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "rate limited", ce.Description)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, fake.calls, "no retry")
}

func TestCompleteTranslatesEmptyResponse(t *testing.T) {
	for name, resp := range map[string]*llms.ContentResponse{
		"nil":        nil,
		"no choices": {},
		"nil choice": {Choices: []*llms.ContentChoice{nil}},
	} {
		t.Run(name, func(t *testing.T) {
			g, err := New("", "", "", WithLLM(&fakeModel{resp: resp}))
			require.NoError(t, err)

			_, err = g.Complete(context.Background(), testLog)
			var ce *CompletionError
			require.ErrorAs(t, err, &ce)
			assert.ErrorIs(t, err, errEmptyResponse)
		})
	}
}

func TestChatMessageTypeSendsUnknownRolesAsGeneric(t *testing.T) {
	assert.Equal(t, schema.ChatMessageTypeGeneric, chatMessageType("tool"))
	assert.Equal(t, schema.ChatMessageTypeGeneric, chatMessageType("developer"))
	assert.Equal(t, schema.ChatMessageTypeHuman, chatMessageType(models.RoleUser))
}

func TestCompleteLogsRequestSizeAtDebugOnly(t *testing.T) {
	fake := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "ok"}},
	}}

	core, logs := observer.New(zapcore.DebugLevel)
	g, err := New("", "", "", WithLLM(fake), WithLogger(zap.New(core)))
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), testLog)
	require.NoError(t, err)

	entries := logs.FilterMessage("Sending completion request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, len(testLog), fields["messages"])
	assert.EqualValues(t, len("You are a helpful AI assistant.hihellohow are you?"), fields["promptChars"])
	assert.NotContains(t, fields, "approxPromptTokens")

	core, logs = observer.New(zapcore.InfoLevel)
	g, err = New("", "", "", WithLLM(fake), WithLogger(zap.New(core)))
	require.NoError(t, err)
	_, err = g.Complete(context.Background(), testLog)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

// providerServer fakes the OpenAI-compatible chat completions endpoint.
func providerServer(t *testing.T, handler func(t *testing.T, body map[string]any) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		status, payload := handler(t, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		assert.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completionPayload(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   DefaultModel,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
	}
}

func TestCompleteAgainstOpenAICompatibleProvider(t *testing.T) {
	srv := providerServer(t, func(t *testing.T, body map[string]any) (int, any) {
		assert.Equal(t, DefaultModel, body["model"])
		assert.InDelta(t, 0.7, body["temperature"], 1e-9)

		maxTokens, ok := body["max_tokens"]
		if !ok {
			maxTokens = body["max_completion_tokens"]
		}
		assert.EqualValues(t, 512, maxTokens)

		msgs, _ := body["messages"].([]any)
		if assert.Len(t, msgs, len(testLog)) {
			for i, raw := range msgs {
				msg, _ := raw.(map[string]any)
				assert.Equal(t, testLog[i].Role, msg["role"])
			}
		}
		return http.StatusOK, completionPayload("I am well.")
	})

	g, err := New(srv.URL, "test-key", "")
	require.NoError(t, err)

	reply, err := g.Complete(context.Background(), testLog)
	require.NoError(t, err)
	assert.Equal(t, "I am well.", reply)
}

func TestCompleteProviderFailureIsCompletionError(t *testing.T) {
	srv := providerServer(t, func(t *testing.T, _ map[string]any) (int, any) {
		return http.StatusUnauthorized, map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		}
	})

	g, err := New(srv.URL, "test-key", "")
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), testLog)
	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.NotEmpty(t, ce.Description)
}

func TestCompleteTransportFailureIsCompletionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g, err := New(url, "test-key", "")
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), testLog)
	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
}

func TestCompleteSendsUnknownRolesToProviderAsUser(t *testing.T) {
	for _, role := range []string{"tool", "developer", "function"} {
		t.Run(role, func(t *testing.T) {
			var hits atomic.Int32
			srv := providerServer(t, func(t *testing.T, body map[string]any) (int, any) {
				hits.Add(1)
				msgs, _ := body["messages"].([]any)
				if assert.Len(t, msgs, 2) {
					last, _ := msgs[1].(map[string]any)
					assert.Equal(t, "user", last["role"])
				}
				return http.StatusOK, completionPayload("noted")
			})

			g, err := New(srv.URL, "test-key", "")
			require.NoError(t, err)

			reply, err := g.Complete(context.Background(), []models.Message{
				{Role: models.RoleSystem, Content: "You are a helpful AI assistant."},
				{Role: role, Content: "some context"},
			})
			require.NoError(t, err)
			assert.Equal(t, "noted", reply)
			assert.EqualValues(t, 1, hits.Load())
		})
	}
}
