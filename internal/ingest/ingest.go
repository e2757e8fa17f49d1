// Package ingest turns raw document text into embedded, searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
)

// Embedder batches texts into vectors.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store persists documents and their chunks.
type Store interface {
	InsertDocument(ctx context.Context, doc *knowledge.Document) error
	InsertChunks(ctx context.Context, chunks []knowledge.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Config tunes chunking. Zero values take the defaults.
type Config struct {
	MaxChunkSize int
	Overlap      int
}

// Ingestor chunks, embeds, and stores documents for one tenant's knowledge
// base.
type Ingestor struct {
	embedder Embedder
	store    Store
	cfg      Config
	logger   log.Logger
}

func New(embedder Embedder, store Store, cfg Config, logger log.Logger) *Ingestor {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = DefaultOverlap
	}
	return &Ingestor{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Ingest stores a new document and its embedded chunks. The document row is
// written first so a failed embedding run leaves the document visible for
// re-ingestion.
func (i *Ingestor) Ingest(ctx context.Context, tenantID, title, content string) (*knowledge.Document, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("document %q: empty content", title)
	}

	doc := &knowledge.Document{TenantID: tenantID, Title: title, Content: content}
	if err := i.store.InsertDocument(ctx, doc); err != nil {
		return nil, err
	}

	if err := i.embedAndStore(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Reingest rebuilds a document's chunks, replacing any existing ones. Used
// after content edits or when an earlier embedding run failed.
func (i *Ingestor) Reingest(ctx context.Context, doc *knowledge.Document) error {
	if err := i.store.DeleteByDocument(ctx, doc.ID); err != nil {
		return err
	}
	return i.embedAndStore(ctx, doc)
}

func (i *Ingestor) embedAndStore(ctx context.Context, doc *knowledge.Document) error {
	texts := ChunkText(doc.Content, i.cfg.MaxChunkSize, i.cfg.Overlap)

	vectors, err := i.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.Title, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding document %q: got %d vectors for %d chunks",
			doc.Title, len(vectors), len(texts))
	}

	chunks := make([]knowledge.Chunk, len(texts))
	for idx, text := range texts {
		chunks[idx] = knowledge.Chunk{
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			Content:    text,
			Embedding:  vectors[idx],
			Index:      int32(idx),
		}
	}
	if err := i.store.InsertChunks(ctx, chunks); err != nil {
		return err
	}

	i.logger.Info("document ingested",
		"tenant_id", doc.TenantID, "document_id", doc.ID, "chunks", len(chunks))
	return nil
}
