// Package embedding turns text into fixed-length vectors for indexing and
// querying. It wraps a Genkit embedder so tests can substitute a
// deterministic fake, and resolves its credential from the tenant-level
// override or the platform default.
//
// A missing credential is always surfaced as ErrMissingAPIKey: silent
// no-op embedding previously produced context-free answers with no
// diagnostic, so the failure must be loud.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/openai/openai-go/option"
)

// DefaultModel is the embedding model used for both document ingestion and
// query embedding. Its vectors match the document_chunks column dimension.
const DefaultModel = "text-embedding-3-small"

// ErrMissingAPIKey indicates no embedding credential could be resolved from
// either the tenant override or the platform default.
var ErrMissingAPIKey = errors.New("no embedding API key configured")

// Client generates embeddings via a Genkit embedder.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Client around an already-resolved embedder.
// Used directly in tests with a mock embedder.
func New(embedder ai.Embedder, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{embedder: embedder, logger: logger}
}

// NewOpenAI creates a Client backed by the OpenAI embeddings API.
// apiKey is the already-resolved credential (tenant override or platform
// default); resolution happens in the caller so this constructor stays
// stateless per call.
func NewOpenAI(ctx context.Context, apiKey string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{
		Opts: []option.RequestOption{option.WithAPIKey(apiKey)},
	}))

	embedder := genkit.LookupEmbedder(g, "openai/"+DefaultModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not available", DefaultModel)
	}

	return New(embedder, logger), nil
}

// ResolveKey picks the embedding credential: tenant override first, then the
// platform default. Returns ErrMissingAPIKey when neither is present.
func ResolveKey(tenantKey, platformKey string) (string, error) {
	if tenantKey != "" {
		return tenantKey, nil
	}
	if platformKey != "" {
		return platformKey, nil
	}
	return "", ErrMissingAPIKey
}

// Embed returns the embedding vector for a single text.
// Used once per incoming user query.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany returns one embedding vector per input text, in input order.
// Used to batch chunk embedding when ingesting a document.
func (c *Client) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, fmt.Errorf("generating embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d",
			len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for input %d", i)
		}
		vecs[i] = e.Embedding
	}

	c.logger.Debug("embeddings generated", "count", len(vecs), "dim", len(vecs[0]))
	return vecs, nil
}
