// Package answergen synthesizes grounded answers from retrieved passages.
// Drivers call an external model; the shared prompt constrains the model to
// the supplied context so it cannot answer from its own knowledge.
package answergen

import (
	"context"
	"fmt"
	"strings"

	"github.com/coragem/retrieval"
)

// DefaultContextTokenLimit bounds the total passage text sent to a model.
const DefaultContextTokenLimit = 3000

// SystemPrompt constrains generation to the retrieved context.
const SystemPrompt = "You are an internal knowledge assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say that you don't have that information. " +
	"Be concise and cite the document titles you drew from."

// Passage is one retrieved chunk handed to the generator, ranked best first.
type Passage struct {
	Title   string
	Content string
}

// Generator produces an answer to a question from ranked passages.
type Generator interface {
	Generate(ctx context.Context, question string, passages []Passage) (string, error)
}

// TruncatePassages drops passages from the tail until the total estimated
// token count fits the limit. Passages arrive ranked best first, so the
// least relevant context is shed first. At least one passage is always
// kept.
func TruncatePassages(passages []Passage, tokenLimit int) []Passage {
	if len(passages) == 0 {
		return passages
	}

	totalTokens := 0
	for _, p := range passages {
		totalTokens += retrieval.EstimateTokens(p.Content)
	}

	for totalTokens > tokenLimit && len(passages) > 1 {
		last := passages[len(passages)-1]
		totalTokens -= retrieval.EstimateTokens(last.Content)
		passages = passages[:len(passages)-1]
	}

	return passages
}

// BuildPrompt renders the user prompt: numbered passages with their source
// titles, then the question.
func BuildPrompt(question string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, p.Title, p.Content)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}
