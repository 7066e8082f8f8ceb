package chatcompletion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func firstResponse(t *testing.T, m *Model, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		return resp, err
	}
	t.Fatal("GenerateContent yielded nothing")
	return nil, nil
}

func jsonRequest(prompt string) *model.LLMRequest {
	temp := float32(0.7)
	return &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("respond with json", genai.RoleUser),
			Temperature:       &temp,
			ResponseMIMEType:  "application/json",
		},
	}
}

func TestGenerateContentSendsOpenAICompatibleRequest(t *testing.T) {
	var captured completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	cfg := OpenAIConfig("sk-test", "")
	cfg.BaseURL = srv.URL
	m := NewModel(cfg, srv.Client())

	resp, err := firstResponse(t, m, jsonRequest("analyze acme.com"))
	require.NoError(t, err)
	require.NotNil(t, resp.Content)
	require.Len(t, resp.Content.Parts, 1)
	assert.Equal(t, `{"ok":true}`, resp.Content.Parts[0].Text)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	assert.Equal(t, 4000, captured.MaxTokens)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.Temperature)
	assert.InDelta(t, 0.7, *captured.Temperature, 0.001)
}

func TestPerplexityOmitsResponseFormat(t *testing.T) {
	var captured completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	cfg := PerplexityConfig("pplx", "")
	cfg.BaseURL = srv.URL
	_, err := firstResponse(t, NewModel(cfg, srv.Client()), jsonRequest("x"))
	require.NoError(t, err)

	assert.Nil(t, captured.ResponseFormat)
	assert.Equal(t, 3000, captured.MaxTokens)
	assert.Equal(t, "llama-3.1-sonar-large-128k-online", captured.Model)
}

func TestGenerateContentReportsUpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`quota exceeded`))
	}))
	defer srv.Close()

	cfg := OpenAIConfig("k", "")
	cfg.BaseURL = srv.URL
	_, err := firstResponse(t, NewModel(cfg, srv.Client()), jsonRequest("x"))
	require.Error(t, err)
	assert.Equal(t, "OpenAI API error: 429 - quota exceeded", err.Error())
}

func TestGenerateContentEmptyContentUsesFinishReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  "},"finish_reason":"length"}]}`))
	}))
	defer srv.Close()

	cfg := OpenAIConfig("k", "")
	cfg.BaseURL = srv.URL
	_, err := firstResponse(t, NewModel(cfg, srv.Client()), jsonRequest("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "truncated")
}
