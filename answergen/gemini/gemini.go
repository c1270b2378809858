// Package gemini provides the Gemini-backed answer generator driver.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/answergen"
)

// Defaults for answer generation.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = float32(0.2)
)

// Config holds Gemini answer generator configuration.
type Config struct {
	APIKey            string
	Model             string
	Temperature       float32
	ContextTokenLimit int
}

// Generator implements answergen.Generator using the Gemini API.
type Generator struct {
	client            *genai.Client
	model             string
	temperature       float32
	contextTokenLimit int
}

// New creates a new Gemini answer generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key is required", retrieval.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.ContextTokenLimit <= 0 {
		cfg.ContextTokenLimit = answergen.DefaultContextTokenLimit
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Generator{
		client:            client,
		model:             cfg.Model,
		temperature:       cfg.Temperature,
		contextTokenLimit: cfg.ContextTokenLimit,
	}, nil
}

// Generate implements answergen.Generator.
func (g *Generator) Generate(ctx context.Context, question string, passages []answergen.Passage) (string, error) {
	passages = answergen.TruncatePassages(passages, g.contextTokenLimit)
	prompt := answergen.BuildPrompt(question, passages)

	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(g.temperature),
		SystemInstruction: genai.NewContentFromText(answergen.SystemPrompt, genai.RoleUser),
	}
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("%w: gemini API call failed: %v", retrieval.ErrProviderUnavailable, err)
	}

	var answer strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					answer.WriteString(part.Text)
				}
			}
			if answer.Len() > 0 {
				break
			}
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("%w: no response generated", retrieval.ErrProviderUnavailable)
	}

	return answer.String(), nil
}

// Compile-time check that Generator implements answergen.Generator.
var _ answergen.Generator = (*Generator)(nil)
