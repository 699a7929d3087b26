package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/questforge/internal/store"
)

var testStagesSchema = &Schema{
	Name: "test-stages",
	Definition: map[string]any{
		"type":     "object",
		"required": []string{"stages"},
		"properties": map[string]any{
			"stages": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"title", "capability"},
					"properties": map[string]any{
						"title":      map[string]any{"type": "string"},
						"capability": map[string]any{"type": "string"},
						"topics":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
				},
			},
		},
	},
}

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, validateResponse(nil, json.RawMessage(`not json`)))
	assert.NoError(t, testStagesSchema.Validate(json.RawMessage(`{"stages":[]}`)))

	var inv *InvalidResponseError
	require.ErrorAs(t, testStagesSchema.Validate(json.RawMessage(`{"stages":`)), &inv)
	assert.Contains(t, inv.Error(), "invalid JSON")

	require.ErrorAs(t, testStagesSchema.Validate(json.RawMessage(`{"stages":[{"title":"x"}]}`)), &inv)
	assert.Contains(t, inv.Error(), "test-stages")
}

func noSleep(r Provider) Provider {
	rp := r.(*retrying)
	rp.sleep = func(context.Context, time.Duration) error { return nil }
	return rp
}

func testRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond, Multiplier: 2}
}

func TestWithRetry_TransientThenSuccess(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Err: &RateLimitError{Err: errors.New("slow down")}},
		MockResponse{Err: &UnavailableError{}},
		MockResponse{Content: json.RawMessage(`{"stages":[]}`)},
	)
	p := noSleep(WithRetry(m, testRetry()))

	resp, err := p.Generate(context.Background(), UserPrompt("", "x", testStagesSchema, 10))
	require.NoError(t, err)
	assert.Equal(t, "mock", resp.Model)
	assert.Len(t, m.Calls(), 3)
}

func TestWithRetry_InvalidResponseRetriedOnce(t *testing.T) {
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{}`)},
		MockResponse{Content: json.RawMessage(`{}`)},
		MockResponse{Content: json.RawMessage(`{"stages":[]}`)},
	)
	p := noSleep(WithRetry(m, testRetry()))

	_, err := p.Generate(context.Background(), UserPrompt("", "x", testStagesSchema, 10))
	var inv *InvalidResponseError
	assert.ErrorAs(t, err, &inv)
	assert.Len(t, m.Calls(), 2)
}

func TestWithRetry_NotRetried(t *testing.T) {
	for name, failure := range map[string]error{
		"truncated": &TruncatedError{},
		"rejected":  &RejectedError{Status: 401, Err: errors.New("bad key")},
		"canceled":  context.Canceled,
	} {
		t.Run(name, func(t *testing.T) {
			m := NewMockProvider(MockResponse{Err: failure}, MockResponse{Content: json.RawMessage(`{}`)})
			_, err := noSleep(WithRetry(m, testRetry())).Generate(context.Background(), UserPrompt("", "x", nil, 10))
			assert.ErrorIs(t, err, failure)
			assert.Len(t, m.Calls(), 1)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	cause := errors.New("boom")
	for _, tc := range []struct {
		code      int
		want      any
		transient bool
	}{
		{429, &RateLimitError{}, true},
		{500, &UnavailableError{}, true},
		{503, &UnavailableError{}, true},
		{408, &UnavailableError{}, true},
		{0, &UnavailableError{}, true},
		{400, &RejectedError{}, false},
		{401, &RejectedError{}, false},
		{404, &RejectedError{}, false},
	} {
		err := classifyStatus(tc.code, cause)
		assert.IsType(t, tc.want, err, "HTTP %d", tc.code)
		assert.ErrorIs(t, err, cause)
		var tr transient
		require.ErrorAs(t, err, &tr)
		assert.Equal(t, tc.transient, tr.Transient(), "HTTP %d", tc.code)
	}
	assert.Contains(t, classifyStatus(401, cause).Error(), "HTTP 401")
}

func TestRetryWait(t *testing.T) {
	r := &retrying{cfg: RetryConfig{InitialWait: time.Second, MaxWait: 4 * time.Second, Multiplier: 2}}

	assert.Equal(t, 7*time.Second, r.wait(0, &RateLimitError{RetryAfter: 7 * time.Second}))
	assert.InDelta(t, float64(time.Second), float64(r.wait(0, errors.New("x"))), float64(200*time.Millisecond))
	assert.InDelta(t, float64(4*time.Second), float64(r.wait(5, errors.New("x"))), float64(800*time.Millisecond))
}

func TestWithTimeout(t *testing.T) {
	m := NewMockProvider()
	assert.Same(t, m, WithTimeout(m, 0))
	assert.Equal(t, "mock", WithTimeout(m, time.Second).ModelID())
}

func TestWithRecording(t *testing.T) {
	mem := store.NewMemory()
	m := NewMockProvider(
		MockResponse{Content: json.RawMessage(`{"stages":[]}`), Usage: usage(12, 34)},
		MockResponse{Err: &UnavailableError{Err: errors.New("down")}},
	)
	p := WithRecording(m, ProviderMock, mem, nil)
	ctx := WithPurpose(context.Background(), PurposeStageDecomposition)

	_, err := p.Generate(ctx, UserPrompt("", "x", testStagesSchema, 10))
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), UserPrompt("", "x", nil, 10))
	require.Error(t, err)

	evs := mem.LLMRequests()
	require.Len(t, evs, 2)
	assert.Equal(t, store.LLMRequestEventData{
		Provider: "mock", Model: "mock", Purpose: PurposeStageDecomposition,
		InputTokens: 12, OutputTokens: 34, LatencyMs: evs[0].LatencyMs, Success: true,
	}, evs[0])
	assert.False(t, evs[1].Success)
	assert.Equal(t, PurposeUnknown, evs[1].Purpose)
	assert.Contains(t, evs[1].ErrorMessage, "down")
}

func TestMockProvider_EmptyQueue(t *testing.T) {
	m := NewMockProvider()
	_, err := m.Generate(context.Background(), Request{})
	var down *UnavailableError
	assert.ErrorAs(t, err, &down)

	m.Add(MockResponse{Content: json.RawMessage(`"ok"`)})
	resp, err := m.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(resp.Content))
}

func TestMockProvider_Responder(t *testing.T) {
	m := NewMockProvider(MockResponse{Content: json.RawMessage(`{"stages":[]}`)})
	m.Respond(func(Request) MockResponse {
		return MockResponse{Content: json.RawMessage(`{"stages":[`), Stop: StopMaxTokens}
	})

	_, err := m.Generate(context.Background(), UserPrompt("", "first", testStagesSchema, 10))
	require.NoError(t, err)

	_, err = m.Generate(context.Background(), UserPrompt("", "second", testStagesSchema, 10))
	var trunc *TruncatedError
	require.ErrorAs(t, err, &trunc)
	assert.Equal(t, `{"stages":[`, string(trunc.Content))
	assert.Len(t, m.Calls(), 2)
}

func TestNew(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderOpenAI}, nil, nil)
	assert.ErrorContains(t, err, "QUESTFORGE_OPENAI_API_KEY")

	p, err := New(context.Background(), Config{Provider: ProviderMock}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.ModelID())

	cfg := DefaultConfig()
	cfg.Provider = ProviderOpenRouter
	cfg.OpenRouter.APIKey = "k"
	p, err = New(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "google/gemini-2.0-flash-exp", p.ModelID())
}
