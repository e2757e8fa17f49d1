// Package retrieval finds knowledge chunks relevant to a chat query.
//
// Retrieval is best-effort: credential, embedding, and search failures are
// logged and collapse to an empty result so a degraded knowledge base never
// blocks a chat turn.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaydesk/relaydesk/internal/embedding"
	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

const (
	// DefaultTopK bounds how many chunks one query pulls into the prompt.
	DefaultTopK = 3
	// DefaultMinSimilarity drops chunks whose cosine similarity is at or
	// below the floor; weakly related text hurts more than no context.
	DefaultMinSimilarity = 0.5

	// chunkSeparator joins chunk bodies in prompt text.
	chunkSeparator = "\n\n---\n\n"
)

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFactory builds an embedding client bound to the given API key.
// Construction is per call so tenant credentials never outlive the turn
// that resolved them. Production wiring adapts embedding.NewOpenAI.
type EmbedderFactory func(ctx context.Context, apiKey string, logger log.Logger) (Embedder, error)

// OpenAIEmbedderFactory is the production EmbedderFactory.
func OpenAIEmbedderFactory(ctx context.Context, apiKey string, logger log.Logger) (Embedder, error) {
	return embedding.NewOpenAI(ctx, apiKey, logger)
}

// Searcher runs a vector similarity search scoped to one tenant.
type Searcher interface {
	SearchChunks(ctx context.Context, tenantID string, query []float32, limit int32) ([]knowledge.SearchResult, error)
}

// Config tunes a Retriever. Zero values take the defaults.
type Config struct {
	TopK          int32
	MinSimilarity float64
}

// Retriever embeds queries and searches one tenant's knowledge base. The
// embedding credential is resolved per call: the tenant's own OpenAI key
// first, then the platform key.
type Retriever struct {
	factory     EmbedderFactory
	platformKey string
	searcher    Searcher
	topK        int32
	minSim      float64
	logger      log.Logger
}

func New(factory EmbedderFactory, platformKey string, searcher Searcher, cfg Config, logger log.Logger) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	return &Retriever{
		factory:     factory,
		platformKey: platformKey,
		searcher:    searcher,
		topK:        cfg.TopK,
		minSim:      cfg.MinSimilarity,
		logger:      logger,
	}
}

// Result holds the chunks that passed the similarity floor, strongest first.
type Result struct {
	Chunks []knowledge.SearchResult
}

// Empty reports whether nothing relevant was found.
func (r Result) Empty() bool { return len(r.Chunks) == 0 }

// PromptText renders the chunks for prompt injection, each prefixed with
// its source document title.
func (r Result) PromptText() string {
	if r.Empty() {
		return ""
	}
	parts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		if c.DocumentTitle == "" {
			parts[i] = c.Content
			continue
		}
		parts[i] = fmt.Sprintf("[Source: %s]\n%s", c.DocumentTitle, c.Content)
	}
	return strings.Join(parts, chunkSeparator)
}

// Retrieve finds chunks relevant to the query within t's documents. An
// empty or whitespace-only query returns immediately without touching the
// embedding API.
func (r *Retriever) Retrieve(ctx context.Context, t *tenant.Tenant, query string) Result {
	if strings.TrimSpace(query) == "" {
		return Result{}
	}

	key, err := embedding.ResolveKey(t.OpenAIAPIKey, r.platformKey)
	if err != nil {
		r.logger.Warn("no embedding credential, continuing without context",
			"tenant_id", t.ID, "error", err)
		return Result{}
	}

	embedder, err := r.factory(ctx, key, r.logger)
	if err != nil {
		r.logger.Warn("embedder construction failed, continuing without context",
			"tenant_id", t.ID, "error", err)
		return Result{}
	}

	vec, err := embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, continuing without context",
			"tenant_id", t.ID, "error", err)
		return Result{}
	}

	found, err := r.searcher.SearchChunks(ctx, t.ID, vec, r.topK)
	if err != nil {
		r.logger.Warn("knowledge search failed, continuing without context",
			"tenant_id", t.ID, "error", err)
		return Result{}
	}

	kept := make([]knowledge.SearchResult, 0, len(found))
	for _, c := range found {
		if c.Similarity > r.minSim {
			kept = append(kept, c)
		}
	}
	return Result{Chunks: kept}
}
