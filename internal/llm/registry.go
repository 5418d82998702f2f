package llm

import "github.com/doku-labs/dokuchat/internal/domain"

// Agent names known to the pipeline. Rewriter and synthesizer are distinct
// registry entries even when they point at the same model, so either can be
// swapped independently.
const (
	AgentRewriter    = "rewriter"
	AgentSynthesizer = "synthesizer"
)

// Registry maps agent names to configured chat clients. It is populated at
// startup and injected into the pipeline; absent entries mean the agent was
// not configured, which callers translate into user-facing guidance.
type Registry struct {
	agents map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Client)}
}

// Register stores client under name, replacing any previous entry.
func (r *Registry) Register(name string, client *Client) {
	r.agents[name] = client
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (*Client, error) {
	client, ok := r.agents[name]
	if !ok || client == nil {
		return nil, domain.ErrAgentNotConfigured
	}
	return client, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.agents[name]
	return ok
}
