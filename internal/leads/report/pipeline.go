// Package report turns lead data into a validated investigation report using a
// generative provider.
package report

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"thor_backend/internal/leads/domain"
	"thor_backend/platform/apperr"
)

// Socials are the optional social profile links passed to the prompt.
type Socials struct {
	LinkedIn  string
	Facebook  string
	Instagram string
	Twitter   string
}

// Request is the lead data a report is generated from.
type Request struct {
	Name    string
	Website string
	Emails  []string
	Socials Socials
}

// Prompt is one rendered generation request.
type Prompt struct {
	System string
	User   string
}

// Generator produces raw report text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

// Pipeline renders the prompt, calls the configured Generator once and
// validates what comes back. It never retries.
type Pipeline struct {
	gen    Generator
	system string
}

// NewPipeline binds a Generator and the system instruction of its provider.
func NewPipeline(gen Generator, provider string) *Pipeline {
	return &Pipeline{gen: gen, system: SystemInstruction(provider)}
}

var codeFence = regexp.MustCompile("```(?:json)?\\n?")

// StripCodeFences removes markdown code fences some providers wrap JSON in.
func StripCodeFences(raw string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(raw, ""))
}

// Generate returns a report that passed schema validation against req.Website.
// Every failure is reported as an upstream error.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*domain.Informe, error) {
	raw, err := p.gen.Generate(ctx, Prompt{System: p.system, User: BuildPrompt(req)})
	if err != nil {
		return nil, apperr.Upstream("report generation failed: "+err.Error(), err)
	}

	informe, err := domain.ParseInforme([]byte(StripCodeFences(raw)), req.Website)
	if err != nil {
		var schemaErr *domain.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, apperr.Upstream("invalid report: "+strings.Join(schemaErr.Issues, ", "), err).
				WithDetails(schemaErr.Issues)
		}
		return nil, apperr.Upstream("invalid report: "+err.Error(), err)
	}
	return informe, nil
}
