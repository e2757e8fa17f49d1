package knowledge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can substitute a fake.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages document chunks with vector search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a chunk Store backed by the given database
// (a *pgxpool.Pool in production).
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// SearchChunks returns the chunks of the given tenant nearest to the query
// vector, ordered by descending cosine similarity, at most limit rows.
//
// Tenant isolation is enforced in SQL: chunks are joined to their owning
// document and filtered on documents.tenant_id, so a chunk can never cross
// tenants regardless of how similar its embedding is.
func (s *Store) SearchChunks(ctx context.Context, tenantID string, query []float32, limit int32) ([]SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	vec := pgvector.NewVector(query)
	rows, err := s.db.Query(ctx, `
		SELECT dc.content,
		       d.title,
		       1 - (dc.embedding <=> $1) AS similarity
		FROM document_chunks dc
		JOIN documents d ON d.id = dc.document_id
		WHERE d.tenant_id = $2
		ORDER BY dc.embedding <=> $1
		LIMIT $3`,
		vec, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks for tenant %q: %w", tenantID, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Content, &r.DocumentTitle, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunk rows: %w", err)
	}

	s.logger.Debug("chunk search completed", "tenant_id", tenantID, "hits", len(results))
	return results, nil
}

// InsertChunks persists the chunks of one ingested document.
// Chunk IDs are generated when absent.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) error {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if len(c.Embedding) != VectorDimension {
			return fmt.Errorf("chunk %d: embedding dimension %d, want %d",
				c.Index, len(c.Embedding), VectorDimension)
		}

		vec := pgvector.NewVector(c.Embedding)
		_, err := s.db.Exec(ctx, `
			INSERT INTO document_chunks (id, document_id, content, embedding, chunk_index)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.DocumentID, c.Content, vec, c.Index)
		if err != nil {
			return fmt.Errorf("inserting chunk %d of document %q: %w", c.Index, c.DocumentID, err)
		}
	}

	s.logger.Debug("chunks inserted", "count", len(chunks))
	return nil
}

// InsertDocument persists a document row and returns it with its generated
// ID and timestamps resolved.
func (s *Store) InsertDocument(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, title, content)
		VALUES ($1, $2, $3, $4)`,
		doc.ID, doc.TenantID, doc.Title, doc.Content)
	if err != nil {
		return fmt.Errorf("inserting document %q for tenant %q: %w", doc.Title, doc.TenantID, err)
	}
	return nil
}

// DeleteByDocument removes all chunks of a document, used when a document is
// re-ingested or deleted.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("deleting chunks of document %q: %w", documentID, err)
	}
	return nil
}
