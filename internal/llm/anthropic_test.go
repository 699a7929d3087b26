package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnthropic(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewAnthropicProvider(Credentials{APIKey: "test-key", Model: "claude-sonnet"},
		option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	require.NoError(t, err)
	return p
}

func anthropicReply(text, stop string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": text}},
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": stop,
			"usage":       map[string]any{"input_tokens": 50, "output_tokens": 30},
		})
	}
}

func anthropicError(code int, typ string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": typ, "message": "nope"},
		})
	}
}

func TestAnthropicProvider_StructuredReply(t *testing.T) {
	p := newTestAnthropic(t, anthropicReply(`{"stages":[{"title":"Read","capability":"read a file"}]}`, "end_turn"))

	resp, err := p.Generate(context.Background(), UserPrompt("sys", "split this quest", testStagesSchema, 256))
	require.NoError(t, err)
	assert.Equal(t, StopEnd, resp.StopReason)
	assert.Equal(t, Usage{InputTokens: 50, OutputTokens: 30, TotalTokens: 80}, resp.Usage)
	assert.Equal(t, "claude-sonnet-4-20250514", resp.Model)
	assert.JSONEq(t, `{"stages":[{"title":"Read","capability":"read a file"}]}`, string(resp.Content))
}

func TestAnthropicProvider_SchemaMismatch(t *testing.T) {
	p := newTestAnthropic(t, anthropicReply(`{"stages":"nope"}`, "end_turn"))

	_, err := p.Generate(context.Background(), UserPrompt("", "x", testStagesSchema, 256))
	var inv *InvalidResponseError
	require.ErrorAs(t, err, &inv)
	assert.JSONEq(t, `{"stages":"nope"}`, string(inv.Content))
}

func TestAnthropicProvider_Truncated(t *testing.T) {
	p := newTestAnthropic(t, anthropicReply(`{"stages":[`, "max_tokens"))

	_, err := p.Generate(context.Background(), UserPrompt("", "x", testStagesSchema, 8))
	var trunc *TruncatedError
	require.ErrorAs(t, err, &trunc)
}

func TestAnthropicProvider_StatusErrors(t *testing.T) {
	p := newTestAnthropic(t, anthropicError(http.StatusTooManyRequests, "rate_limit_error"))
	_, err := p.Generate(context.Background(), UserPrompt("", "x", nil, 16))
	var rl *RateLimitError
	assert.ErrorAs(t, err, &rl)

	p = newTestAnthropic(t, anthropicError(http.StatusInternalServerError, "api_error"))
	_, err = p.Generate(context.Background(), UserPrompt("", "x", nil, 16))
	var down *UnavailableError
	assert.ErrorAs(t, err, &down)
}

func TestAnthropicProvider_RequiresKey(t *testing.T) {
	_, err := NewAnthropicProvider(Credentials{})
	assert.Error(t, err)
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		aliases map[string]string
		in      string
		want    string
	}{
		{anthropicModels, "claude-sonnet", "claude-sonnet-4-20250514"},
		{anthropicModels, "claude-haiku", "claude-haiku-4-5-20251001"},
		{anthropicModels, "claude-opus-custom", "claude-opus-custom"},
		{openaiModels, "gpt-4o-mini", "gpt-4o-mini"},
		{openrouterModels, "claude-sonnet", "anthropic/claude-sonnet-4"},
		{geminiModels, "gemini-flash", "gemini-2.0-flash"},
		{geminiModels, "gemini-2.5-pro", "gemini-2.5-pro"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveModel(tt.in, tt.aliases), tt.in)
	}
}
