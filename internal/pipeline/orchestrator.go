package pipeline

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doku-labs/dokuchat/internal/domain"
	"github.com/doku-labs/dokuchat/internal/llm"
	"github.com/doku-labs/dokuchat/internal/retriever"
	"github.com/doku-labs/dokuchat/internal/rewrite"
	"github.com/doku-labs/dokuchat/internal/telemetry"
)

// QueryRewriter expands follow-up questions. May be absent.
type QueryRewriter interface {
	Rewrite(ctx context.Context, query, history string) rewrite.Result
}

// Retriever produces the ranked context documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, original string) (retriever.Result, error)
}

// Options configures an Orchestrator.
type Options struct {
	ContextMaxChars int
}

// Orchestrator runs the linear stage sequence for one conversation. Stages
// never branch; failures short-circuit inside their stage and the run always
// produces an Output.
type Orchestrator struct {
	rewriter  QueryRewriter
	retriever Retriever
	agents    *llm.Registry
	opts      Options
	sessionID uuid.UUID
}

// New creates an Orchestrator with a fresh session identifier. rewriter may
// be nil when no rewriter agent is configured.
func New(rewriter QueryRewriter, ret Retriever, agents *llm.Registry, opts Options) *Orchestrator {
	return &Orchestrator{
		rewriter:  rewriter,
		retriever: ret,
		agents:    agents,
		opts:      opts,
		sessionID: uuid.New(),
	}
}

// SessionID is the stable identifier for this conversation.
func (o *Orchestrator) SessionID() uuid.UUID {
	return o.sessionID
}

// Run executes the full pipeline for query. chatHistory is the raw prior
// transcript; when blank the rewrite step is skipped.
func (o *Orchestrator) Run(ctx context.Context, query, chatHistory string) *Output {
	state := &State{
		Query:       query,
		ChatHistory: chatHistory,
		UsedQuery:   query,
	}

	o.rewriteAndRetrieve(ctx, state)
	o.assembleAndSynthesize(ctx, state)
	return o.finalize(state)
}

func (o *Orchestrator) rewriteAndRetrieve(ctx context.Context, state *State) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, StageRewriteAndRetrieve, telemetry.SpanAttributes{
		SessionID: o.sessionID.String(),
	})
	defer span.End()

	if o.rewriter != nil && strings.TrimSpace(state.ChatHistory) != "" {
		if res := o.rewriter.Rewrite(ctx, state.Query, state.ChatHistory); res.Ok {
			state.RewrittenQuery = res.Query
			state.UsedQuery = res.Query
		}
	}

	result, err := o.retriever.Retrieve(ctx, state.UsedQuery, state.Query)
	if err != nil {
		// Retrieval failure degrades to an empty context; the not-found
		// answer covers it downstream.
		log.Printf("session %s: retrieval failed: %v", o.sessionID, err)
		telemetry.CaptureError(ctx, err)
	} else {
		state.ContextDocs = result.Docs
		if result.UsedOriginalFallback {
			log.Printf("session %s: rewritten query returned nothing, used original query", o.sessionID)
		}
	}

	state.Diagnostics = append(state.Diagnostics, DiagnosticEvent{
		Stage:      StageRewriteAndRetrieve,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
		DocCount:   len(state.ContextDocs),
	})
}

func (o *Orchestrator) assembleAndSynthesize(ctx context.Context, state *State) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, StageAssembleAndSynthesize, telemetry.SpanAttributes{
		SessionID: o.sessionID.String(),
	})
	defer span.End()

	state.ContextText = AssembleContext(state.ContextDocs, o.opts.ContextMaxChars)

	agent, err := o.agents.Get(llm.AgentSynthesizer)
	if err != nil {
		state.Answer = domain.MsgAgentNotConfigured
		state.Source = SourceWiki
	} else {
		synth := NewSynthesizer(agent)
		state.Answer, state.Source = synth.Synthesize(ctx, state.UsedQuery, state.ContextText, len(state.ContextDocs))
	}

	state.Diagnostics = append(state.Diagnostics, DiagnosticEvent{
		Stage:          StageAssembleAndSynthesize,
		DurationMS:     float64(time.Since(start).Microseconds()) / 1000,
		DocCount:       len(state.ContextDocs),
		ContextPreview: preview(state.ContextText),
	})
}

func (o *Orchestrator) finalize(state *State) *Output {
	start := time.Now()

	contextDocs := make([]map[string]string, len(state.ContextDocs))
	for i, r := range state.ContextDocs {
		contextDocs[i] = r.Document.CloneMetadata()
	}

	state.Diagnostics = append(state.Diagnostics, DiagnosticEvent{
		Stage:      StageFinalize,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
		DocCount:   len(state.ContextDocs),
	})

	return &Output{
		Answer:         state.Answer,
		Source:         state.Source,
		ContextDocs:    contextDocs,
		Diagnostics:    state.Diagnostics,
		Query:          state.Query,
		RewrittenQuery: state.RewrittenQuery,
	}
}
