package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockEmbedder returns deterministic vectors. Unknown text maps to a unit
// vector derived from its SHA-256 hash; SetVector pins exact vectors when a
// test needs precise cosine similarity between inputs. The embedder counts
// invocations so tests can assert it was not called at all.
type MockEmbedder struct {
	mu      sync.Mutex
	pinned  map[string][]float32
	dim     int
	callSum int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{pinned: make(map[string][]float32), dim: dim}
}

// SetVector pins the vector returned for the exact text.
func (e *MockEmbedder) SetVector(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// CallCount reports how many embed requests the mock has served.
func (e *MockEmbedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callSum
}

// Register defines the mock as a Genkit embedder named "mock/embedder"
// and returns its reference.
func (e *MockEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, "mock/embedder", &ai.EmbedderOptions{
		Label:      "Mock Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.callSum++
	e.mu.Unlock()

	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(docText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *MockEmbedder) vectorFor(text string) []float32 {
	e.mu.Lock()
	v, ok := e.pinned[text]
	e.mu.Unlock()
	if ok {
		return v
	}
	return hashVector(text, e.dim)
}

func docText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// hashVector maps text to a unit vector seeded by its SHA-256 digest, so
// equal text always embeds identically.
func hashVector(text string, dim int) []float32 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(digest)
		bits := binary.LittleEndian.Uint32([]byte{
			digest[idx%32],
			digest[(idx+1)%32],
			digest[(idx+2)%32],
			digest[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
