package pipeline

import (
	"context"
	"log"

	"github.com/doku-labs/dokuchat/internal/domain"
	"github.com/doku-labs/dokuchat/internal/llm"
)

const synthesisPromptPrefix = `You answer questions about internal documentation.

Operating rules:
- Answer ONLY from the context below. If the context conflicts with anything
  you believe you know, the context wins.
- If the answer cannot be derived from the context, reply exactly:
  "` + domain.MsgNoAnswer + `"
- Be concise and cite the relevant passage content where helpful.

Context:
`

// ChatAgent is the model call the synthesizer needs.
type ChatAgent interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Synthesizer turns assembled context into a grounded answer with a single
// model call.
type Synthesizer struct {
	agent ChatAgent
}

// NewSynthesizer creates a Synthesizer over agent.
func NewSynthesizer(agent ChatAgent) *Synthesizer {
	return &Synthesizer{agent: agent}
}

// Synthesize produces the answer for query given the assembled context.
// With zero retrieved documents the model is never called and the fixed
// not-found message is returned. Chat history never reaches this call; its
// influence is confined to the rewriter.
func (s *Synthesizer) Synthesize(ctx context.Context, query, contextText string, docCount int) (answer, source string) {
	if docCount == 0 {
		return domain.MsgNoAnswer, SourceWiki
	}

	out, err := s.agent.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: synthesisPromptPrefix + contextText},
		{Role: llm.RoleUser, Content: query},
	})
	if err != nil {
		log.Printf("answer synthesis failed: %v", err)
		return "Answer generation failed: " + err.Error(), SourceError
	}

	return out, SourceWiki
}
