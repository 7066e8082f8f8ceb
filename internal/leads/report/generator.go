package report

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const temperature = float32(0.7)

// LLMGenerator adapts a model.LLM to Generator, requesting JSON output.
type LLMGenerator struct {
	llm model.LLM
}

func NewLLMGenerator(llm model.LLM) *LLMGenerator {
	return &LLMGenerator{llm: llm}
}

func (g *LLMGenerator) Generate(ctx context.Context, prompt Prompt) (string, error) {
	temp := temperature
	req := &model.LLMRequest{
		Model:    g.llm.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(prompt.User, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			Temperature:      &temp,
			ResponseMIMEType: "application/json",
		},
	}
	if prompt.System != "" {
		req.Config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	var sb strings.Builder
	for resp, err := range g.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("provider returned no content")
	}
	return text, nil
}
