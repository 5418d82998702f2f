package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doku-labs/dokuchat/internal/domain"
	"github.com/doku-labs/dokuchat/internal/llm"
)

type countingAgent struct {
	calls    int
	reply    string
	err      error
	messages []llm.Message
}

func (a *countingAgent) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	a.calls++
	a.messages = messages
	return a.reply, a.err
}

func TestSynthesize_GroundedCall(t *testing.T) {
	agent := &countingAgent{reply: "The policy is to page the on-call engineer."}
	s := NewSynthesizer(agent)

	answer, source := s.Synthesize(context.Background(), "what is the escalation policy?", "Escalation: page on-call.", 2)

	assert.Equal(t, "The policy is to page the on-call engineer.", answer)
	assert.Equal(t, SourceWiki, source)
	assert.Equal(t, 1, agent.calls)

	require.Len(t, agent.messages, 2)
	assert.Equal(t, llm.RoleSystem, agent.messages[0].Role)
	assert.Contains(t, agent.messages[0].Content, "Escalation: page on-call.")
	assert.Equal(t, llm.RoleUser, agent.messages[1].Role)
	assert.Equal(t, "what is the escalation policy?", agent.messages[1].Content)
}

func TestSynthesize_ZeroDocsSkipsModel(t *testing.T) {
	agent := &countingAgent{reply: "must never be used"}
	s := NewSynthesizer(agent)

	answer, source := s.Synthesize(context.Background(), "anything", "", 0)

	assert.Equal(t, domain.MsgNoAnswer, answer)
	assert.Equal(t, SourceWiki, source)
	assert.Equal(t, 0, agent.calls, "synthesizer must not call the model with zero documents")
}

func TestSynthesize_CallFailureIsErrorTagged(t *testing.T) {
	agent := &countingAgent{err: errors.New("model unavailable")}
	s := NewSynthesizer(agent)

	answer, source := s.Synthesize(context.Background(), "q", "some context", 1)

	assert.Equal(t, SourceError, source)
	assert.Contains(t, answer, "model unavailable")
}
