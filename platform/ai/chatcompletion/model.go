// Package chatcompletion adapts OpenAI-compatible chat completion APIs
// (OpenAI, Perplexity) to the ADK model.LLM interface.
package chatcompletion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	openAIBaseURL     = "https://api.openai.com/v1"
	perplexityBaseURL = "https://api.perplexity.ai"

	defaultOpenAIModel     = "gpt-4o-mini"
	defaultPerplexityModel = "llama-3.1-sonar-large-128k-online"

	jsonMIMEType = "application/json"
)

// Config describes one chat completion endpoint.
type Config struct {
	// Provider is the display name used in error messages.
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	// JSONMode sends response_format json_object when the request asks for JSON output.
	JSONMode bool
	// MaxTokens is used when the request does not set MaxOutputTokens.
	MaxTokens int
}

// OpenAIConfig returns the settings used for OpenAI investigations.
func OpenAIConfig(apiKey, modelName string) Config {
	if modelName == "" {
		modelName = defaultOpenAIModel
	}
	return Config{
		Provider:  "OpenAI",
		APIKey:    apiKey,
		BaseURL:   openAIBaseURL,
		Model:     modelName,
		JSONMode:  true,
		MaxTokens: 4000,
	}
}

// PerplexityConfig returns the settings used for Perplexity investigations.
// Perplexity does not accept response_format json_object.
func PerplexityConfig(apiKey, modelName string) Config {
	if modelName == "" {
		modelName = defaultPerplexityModel
	}
	return Config{
		Provider:  "Perplexity",
		APIKey:    apiKey,
		BaseURL:   perplexityBaseURL,
		Model:     modelName,
		MaxTokens: 3000,
	}
}

// Model implements model.LLM over an OpenAI-compatible /chat/completions endpoint.
type Model struct {
	config Config
	client *http.Client
}

// NewModel builds a Model. A nil client uses a fresh http.Client.
func NewModel(cfg Config, client *http.Client) *Model {
	if client == nil {
		client = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Model{config: cfg, client: client}
}

func (m *Model) Name() string {
	return m.config.Model
}

// Provider returns the display name of the upstream service.
func (m *Model) Provider() string {
	return m.config.Provider
}

// GenerateContent performs a single non-streaming completion.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%s: empty request", m.config.Provider)
	}

	body := m.buildRequest(req)
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", m.config.Provider, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", m.config.Provider, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", m.config.Provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", m.config.Provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s API error: %d - %s", m.config.Provider, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result completionResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", m.config.Provider, err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", m.config.Provider)
	}

	choice := result.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, emptyContentError(m.config.Provider, choice.FinishReason)
	}

	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{genai.NewPartFromText(content)},
		},
	}, nil
}

func (m *Model) buildRequest(req *model.LLMRequest) completionRequest {
	out := completionRequest{
		Model:     m.config.Model,
		MaxTokens: m.config.MaxTokens,
	}

	if cfg := req.Config; cfg != nil {
		if cfg.SystemInstruction != nil {
			if text := joinText(cfg.SystemInstruction); text != "" {
				out.Messages = append(out.Messages, message{Role: "system", Content: text})
			}
		}
		if cfg.Temperature != nil {
			t := float64(*cfg.Temperature)
			out.Temperature = &t
		}
		if cfg.MaxOutputTokens > 0 {
			out.MaxTokens = int(cfg.MaxOutputTokens)
		}
		if m.config.JSONMode && cfg.ResponseMIMEType == jsonMIMEType {
			out.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := joinText(content)
		if text == "" {
			continue
		}
		out.Messages = append(out.Messages, message{Role: roleForContent(content.Role), Content: text})
	}
	return out
}

func emptyContentError(provider, finishReason string) error {
	switch finishReason {
	case "length":
		return fmt.Errorf("%s response was truncated (max_tokens reached)", provider)
	case "content_filter":
		return fmt.Errorf("%s response was blocked by the content filter", provider)
	case "":
		return fmt.Errorf("%s returned an empty response", provider)
	default:
		return fmt.Errorf("%s returned an empty response (finish_reason: %s)", provider, finishReason)
	}
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return "assistant"
	}
	return "user"
}

func joinText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
