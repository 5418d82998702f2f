package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doku-labs/dokuchat/internal/domain"
	"github.com/doku-labs/dokuchat/internal/llm"
	"github.com/doku-labs/dokuchat/internal/retriever"
	"github.com/doku-labs/dokuchat/internal/rewrite"
)

// echoAPI replies with the system message so tests can verify the answer is
// built from retrieved context alone.
type echoAPI struct {
	calls int
}

func (e *echoAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	e.calls++
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: req.Messages[0].Content}},
		},
	}, nil
}

type stubRetriever struct {
	docs      []domain.RetrievalResult
	err       error
	fallback  bool
	gotQuery  string
	gotOrig   string
	callCount int
}

func (s *stubRetriever) Retrieve(ctx context.Context, query, original string) (retriever.Result, error) {
	s.callCount++
	s.gotQuery = query
	s.gotOrig = original
	if s.err != nil {
		return retriever.Result{}, s.err
	}
	return retriever.Result{Docs: s.docs, Fusion: retriever.FusionApplied, UsedOriginalFallback: s.fallback}, nil
}

type stubRewriter struct {
	result    rewrite.Result
	callCount int
}

func (s *stubRewriter) Rewrite(ctx context.Context, query, history string) rewrite.Result {
	s.callCount++
	return s.result
}

func registryWith(api llm.ChatAPI) *llm.Registry {
	reg := llm.NewRegistry()
	reg.Register(llm.AgentSynthesizer, llm.NewClientWithAPI(api, llm.AgentConfig{
		Endpoint:   "http://localhost",
		Model:      "stub",
		Timeout:    time.Second,
		MaxRetries: 1,
	}))
	return reg
}

func wikiDoc(content string) domain.RetrievalResult {
	return domain.RetrievalResult{
		ID: "wiki-0",
		Document: domain.Document{
			Content: content,
			Metadata: map[string]string{
				domain.MetaSource:   "docs/policy.md",
				domain.MetaType:     "wiki",
				domain.MetaFilename: "policy.md",
			},
		},
		Score: 0.9,
	}
}

func TestRun_EndToEndGrounding(t *testing.T) {
	api := &echoAPI{}
	rewriter := &stubRewriter{result: rewrite.Result{Query: "must not be used", Ok: true}}
	ret := &stubRetriever{docs: []domain.RetrievalResult{
		wikiDoc("Escalation: page the on-call engineer first."),
		wikiDoc("Severity one incidents wake the director."),
	}}

	o := New(rewriter, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "What is the escalation policy?", "")

	// Empty history skips the rewriter entirely.
	assert.Equal(t, 0, rewriter.callCount)
	assert.Empty(t, out.RewrittenQuery)
	assert.Equal(t, "What is the escalation policy?", ret.gotQuery)

	// The echo model returns the system prompt, so a grounded answer must
	// carry the retrieved passages and nothing conversation-specific.
	assert.Equal(t, SourceWiki, out.Source)
	assert.Contains(t, out.Answer, "Escalation: page the on-call engineer first.")
	assert.Contains(t, out.Answer, "Severity one incidents wake the director.")

	require.Len(t, out.ContextDocs, 2)
	assert.Equal(t, "docs/policy.md", out.ContextDocs[0][domain.MetaSource])
	assert.Equal(t, "What is the escalation policy?", out.Query)
}

func TestRun_ZeroDocsNeverCallsModel(t *testing.T) {
	api := &echoAPI{}
	ret := &stubRetriever{docs: nil}

	o := New(nil, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "unknown topic", "")

	assert.Equal(t, 0, api.calls, "model must not be called with zero documents")
	assert.Equal(t, domain.MsgNoAnswer, out.Answer)
	assert.Equal(t, SourceWiki, out.Source)
	assert.Empty(t, out.ContextDocs)
}

func TestRun_RewriteFeedsRetriever(t *testing.T) {
	api := &echoAPI{}
	rewriter := &stubRewriter{result: rewrite.Result{Query: "what is the deploy rollback policy", Ok: true}}
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc("Rollback via helm.")}}

	o := New(rewriter, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "and how do I undo it?", "user: how do I deploy?\nassistant: With helm.")

	assert.Equal(t, 1, rewriter.callCount)
	assert.Equal(t, "what is the deploy rollback policy", ret.gotQuery)
	assert.Equal(t, "and how do I undo it?", ret.gotOrig)
	assert.Equal(t, "what is the deploy rollback policy", out.RewrittenQuery)
}

func TestRun_RewriteReportedEvenWhenFallbackUsed(t *testing.T) {
	api := &echoAPI{}
	rewriter := &stubRewriter{result: rewrite.Result{Query: "narrow rewrite", Ok: true}}
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc("found via original")}, fallback: true}

	o := New(rewriter, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "original question", "user: hi\nassistant: hello")

	assert.Equal(t, "narrow rewrite", out.RewrittenQuery)
	require.Len(t, out.ContextDocs, 1)
}

func TestRun_FailedRewriteKeepsOriginalQuery(t *testing.T) {
	api := &echoAPI{}
	rewriter := &stubRewriter{result: rewrite.Result{}}
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc("content")}}

	o := New(rewriter, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "original question", "user: hi\nassistant: hello")

	assert.Equal(t, "original question", ret.gotQuery)
	assert.Empty(t, out.RewrittenQuery)
	assert.Equal(t, SourceWiki, out.Source)
}

func TestRun_RetrievalErrorDegradesToNotFound(t *testing.T) {
	api := &echoAPI{}
	ret := &stubRetriever{err: errors.New("database unreachable")}

	o := New(nil, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "q", "")

	assert.Equal(t, domain.MsgNoAnswer, out.Answer)
	assert.Equal(t, SourceWiki, out.Source)
	assert.Equal(t, 0, api.calls)
}

func TestRun_MissingSynthesizerAgent(t *testing.T) {
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc("content")}}

	o := New(nil, ret, llm.NewRegistry(), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "q", "")

	assert.Equal(t, domain.MsgAgentNotConfigured, out.Answer)
	assert.Equal(t, SourceWiki, out.Source)
}

func TestRun_DiagnosticsCoverEveryStage(t *testing.T) {
	api := &echoAPI{}
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc("some passage content")}}

	o := New(nil, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "q", "")

	require.Len(t, out.Diagnostics, 3)
	assert.Equal(t, StageRewriteAndRetrieve, out.Diagnostics[0].Stage)
	assert.Equal(t, StageAssembleAndSynthesize, out.Diagnostics[1].Stage)
	assert.Equal(t, StageFinalize, out.Diagnostics[2].Stage)

	assert.Equal(t, 1, out.Diagnostics[0].DocCount)
	assert.Contains(t, out.Diagnostics[1].ContextPreview, "some passage content")
	for _, ev := range out.Diagnostics {
		assert.GreaterOrEqual(t, ev.DurationMS, 0.0)
	}
}

func TestRun_ContextPreviewIsCapped(t *testing.T) {
	api := &echoAPI{}
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	ret := &stubRetriever{docs: []domain.RetrievalResult{wikiDoc(string(long))}}

	o := New(nil, ret, registryWith(api), Options{ContextMaxChars: 30000})
	out := o.Run(context.Background(), "q", "")

	assert.Len(t, out.Diagnostics[1].ContextPreview, 500)
}

func TestSessionIDIsStablePerOrchestrator(t *testing.T) {
	ret := &stubRetriever{}
	o := New(nil, ret, llm.NewRegistry(), Options{})

	first := o.SessionID()
	assert.Equal(t, first, o.SessionID())

	other := New(nil, ret, llm.NewRegistry(), Options{})
	assert.NotEqual(t, first, other.SessionID())
}
