// Package claude provides the Anthropic-backed answer generator driver.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/coragem/retrieval"
	"github.com/coragem/retrieval/answergen"
)

// Defaults for answer generation.
const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.2
)

// Config holds Anthropic answer generator configuration.
type Config struct {
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	ContextTokenLimit int
}

// Generator implements answergen.Generator using the Anthropic API.
type Generator struct {
	client            anthropic.Client
	model             string
	maxTokens         int
	temperature       float64
	contextTokenLimit int
}

// New creates a new Anthropic answer generator.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", retrieval.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.ContextTokenLimit <= 0 {
		cfg.ContextTokenLimit = answergen.DefaultContextTokenLimit
	}

	return &Generator{
		client:            anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:             cfg.Model,
		maxTokens:         cfg.MaxTokens,
		temperature:       cfg.Temperature,
		contextTokenLimit: cfg.ContextTokenLimit,
	}, nil
}

// Generate implements answergen.Generator.
func (g *Generator) Generate(ctx context.Context, question string, passages []answergen.Passage) (string, error) {
	passages = answergen.TruncatePassages(passages, g.contextTokenLimit)
	prompt := answergen.BuildPrompt(question, passages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(g.maxTokens),
		Temperature: anthropic.Float(g.temperature),
		System: []anthropic.TextBlockParam{
			{Text: answergen.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: claude API call failed: %v", retrieval.ErrProviderUnavailable, err)
	}

	var answer strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}
	if answer.Len() == 0 {
		return "", fmt.Errorf("%w: no response generated", retrieval.ErrProviderUnavailable)
	}

	return answer.String(), nil
}

// Compile-time check that Generator implements answergen.Generator.
var _ answergen.Generator = (*Generator)(nil)
