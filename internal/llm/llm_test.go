package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-call-insights-go/internal/config"
)

func testOpts() Options {
	return Options{Model: "gpt-4", MaxTokens: 1500, Temperature: 0.3, Timeout: 5 * time.Second, MaxRetry: 2 * time.Second}
}

func TestOpenAI_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4", req.Model)
		assert.Equal(t, 1500, req.MaxTokens)
		assert.InDelta(t, 0.3, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be a coach", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"PITCH SCORE: 6/10"}}]}`))
	}))
	defer ts.Close()

	p := NewOpenAI(ts.URL+"/", "sk-test", testOpts())
	out, err := p.Generate(context.Background(), "be a coach", "analyze this")
	require.NoError(t, err)
	assert.Equal(t, "PITCH SCORE: 6/10", out)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer ts.Close()

	out, err := NewOpenAI(ts.URL, "k", testOpts()).Generate(context.Background(), "", "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAI_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer ts.Close()

	_, err := NewOpenAI(ts.URL, "bad", testOpts()).Generate(context.Background(), "", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestAnthropic_Generate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		assert.NotNil(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"content":     []map[string]any{{"type": "text", "text": "PITCH SCORE: 9/10"}},
			"model":       "claude-test",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer ts.Close()

	opts := testOpts()
	opts.Model = "claude-test"
	p := NewAnthropic("test-key", opts, option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	out, err := p.Generate(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "PITCH SCORE: 9/10", out)
}

func TestMock(t *testing.T) {
	m := &Mock{}
	out, err := m.Generate(context.Background(), "", "p1")
	require.NoError(t, err)
	assert.Equal(t, MockAnalysis, out)

	m.Err = errors.New("down")
	_, err = m.Generate(context.Background(), "", "p2")
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, m.Calls())
}

func TestNew(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "openai", APIKey: "k", Model: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(config.LLMConfig{Provider: "anthropic", AnthropicKey: "k", AnthropicModel: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = New(config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())

	_, err = New(config.LLMConfig{Provider: "openai"})
	assert.Error(t, err)

	_, err = New(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
