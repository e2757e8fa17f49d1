package ingest

import (
	"context"
	"fmt"

	"github.com/relaydesk/relaydesk/internal/embedding"
	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

// EmbedderFactory builds an embedding client bound to the given API key.
// Production wiring uses embedding.NewOpenAI; tests substitute a fake.
type EmbedderFactory func(ctx context.Context, apiKey string, logger log.Logger) (Embedder, error)

// Service ingests documents on behalf of tenants, resolving the embedding
// credential per call: the tenant's own OpenAI key wins, the platform key is
// the fallback. Documents ingested under a tenant key and retrieved later
// use the same key precedence, so vectors stay comparable.
type Service struct {
	store       Store
	factory     EmbedderFactory
	platformKey string
	cfg         Config
	logger      log.Logger
}

func NewService(store Store, factory EmbedderFactory, platformKey string, cfg Config, logger log.Logger) *Service {
	return &Service{
		store:       store,
		factory:     factory,
		platformKey: platformKey,
		cfg:         cfg,
		logger:      logger,
	}
}

// IngestFor chunks, embeds, and stores a document in t's knowledge base.
func (s *Service) IngestFor(ctx context.Context, t *tenant.Tenant, title, content string) (*knowledge.Document, error) {
	key, err := embedding.ResolveKey(t.OpenAIAPIKey, s.platformKey)
	if err != nil {
		return nil, fmt.Errorf("tenant %q: %w", t.Slug, err)
	}

	embedder, err := s.factory(ctx, key, s.logger)
	if err != nil {
		return nil, fmt.Errorf("building embedder for tenant %q: %w", t.Slug, err)
	}

	ing := New(embedder, s.store, s.cfg, s.logger)
	return ing.Ingest(ctx, t.ID, title, content)
}
