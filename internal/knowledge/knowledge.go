// Package knowledge stores tenant documents as embedded chunks and serves
// vector similarity search over them.
package knowledge

import "time"

// VectorDimension is the embedding width of text-embedding-3-small.
// The document_chunks.embedding column is declared with the same width,
// so every stored vector must match it.
const VectorDimension = 1536

// Document is one knowledge base entry owned by a tenant. The raw content
// is kept alongside its chunks so re-ingestion can rebuild them.
type Document struct {
	ID        string
	TenantID  string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is one embedded slice of a document.
type Chunk struct {
	ID         string
	DocumentID string
	TenantID   string
	Content    string
	Embedding  []float32
	Index      int32
	CreatedAt  time.Time
}

// SearchResult is one similarity search hit. Similarity is cosine
// similarity in [-1, 1]; higher is closer.
type SearchResult struct {
	Content       string
	DocumentTitle string
	Similarity    float64
}
