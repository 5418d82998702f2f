// Package rewrite expands follow-up questions into self-contained queries
// using recent conversation context.
package rewrite

import (
	"context"
	"log"
	"strings"

	"github.com/doku-labs/dokuchat/internal/llm"
)

const systemPrompt = `You rewrite user questions for a documentation search system.

Given the recent conversation and the latest question, decide:
- If the question is a new, self-contained topic, return it unchanged.
- If it is a follow-up that references earlier turns (pronouns, "it", "that",
  "the same", elisions), rewrite it into one standalone question that
  includes the referenced context.

Return only the question text, nothing else.`

// Result is the outcome of a rewrite attempt. Ok is false when the model
// call failed or produced nothing usable; callers then keep the original
// query.
type Result struct {
	Query string
	Ok    bool
}

// Rewriter issues a single classify-and-rewrite call per query.
type Rewriter struct {
	agent *llm.Client
	turns int
}

// New creates a Rewriter using agent. turns is the number of user+assistant
// exchanges of history passed to the model.
func New(agent *llm.Client, turns int) *Rewriter {
	return &Rewriter{agent: agent, turns: turns}
}

// Rewrite rewrites query against history. history is the raw conversation
// transcript, one message per line. Callers must not invoke Rewrite with an
// empty history; the contract is that a first question never needs rewriting.
func (r *Rewriter) Rewrite(ctx context.Context, query, history string) Result {
	recent := recentTurns(history, r.turns)
	if recent == "" {
		return Result{}
	}

	out, err := r.agent.Chat(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: "Conversation:\n" + recent + "\n\nLatest question: " + query},
	})
	if err != nil {
		log.Printf("query rewrite failed, keeping original query: %v", err)
		return Result{}
	}

	rewritten := sanitize(out)
	if rewritten == "" {
		return Result{}
	}
	return Result{Query: rewritten, Ok: true}
}

// recentTurns keeps the last 2×turns non-blank lines of history.
func recentTurns(history string, turns int) string {
	var lines []string
	for _, line := range strings.Split(history, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	keep := 2 * turns
	if keep <= 0 || len(lines) == 0 {
		return ""
	}
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n")
}

// sanitize trims whitespace and strips one layer of surrounding quotes that
// models sometimes echo around the rewritten question.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
