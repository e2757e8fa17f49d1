package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

func fixedFactory(e Embedder) EmbedderFactory {
	return func(context.Context, string, log.Logger) (Embedder, error) {
		return e, nil
	}
}

type fakeSearcher struct {
	results  []knowledge.SearchResult
	err      error
	tenantID string
	limit    int32
}

func (f *fakeSearcher) SearchChunks(_ context.Context, tenantID string, _ []float32, limit int32) ([]knowledge.SearchResult, error) {
	f.tenantID = tenantID
	f.limit = limit
	return f.results, f.err
}

func keyedTenant() *tenant.Tenant {
	return &tenant.Tenant{ID: "tenant-1", Slug: "acme", OpenAIAPIKey: "tenant-key"}
}

func TestRetrieveFiltersBySimilarity(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		{Content: "strong match", DocumentTitle: "FAQ", Similarity: 0.92},
		{Content: "borderline", DocumentTitle: "FAQ", Similarity: 0.5},
		{Content: "weak", DocumentTitle: "FAQ", Similarity: 0.31},
	}}
	r := New(fixedFactory(&fakeEmbedder{vec: []float32{1, 0}}), "", searcher, Config{}, log.NewNop())

	got := r.Retrieve(context.Background(), keyedTenant(), "how do refunds work")

	if len(got.Chunks) != 1 {
		t.Fatalf("kept %d chunks, want 1 (floor is exclusive)", len(got.Chunks))
	}
	if got.Chunks[0].Content != "strong match" {
		t.Errorf("kept %q, want the strong match", got.Chunks[0].Content)
	}
	if searcher.limit != DefaultTopK {
		t.Errorf("search limit = %d, want %d", searcher.limit, DefaultTopK)
	}
	if searcher.tenantID != "tenant-1" {
		t.Errorf("search scoped to %q, want tenant-1", searcher.tenantID)
	}
}

func TestRetrieveEmptyQuerySkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1}}
	r := New(fixedFactory(emb), "", &fakeSearcher{}, Config{}, log.NewNop())

	for _, q := range []string{"", "   ", "\n\t"} {
		got := r.Retrieve(context.Background(), keyedTenant(), q)
		if !got.Empty() {
			t.Errorf("query %q: result not empty", q)
		}
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for blank queries, want 0", emb.calls)
	}
}

func TestRetrieveKeyPrecedence(t *testing.T) {
	var gotKey string
	factory := func(_ context.Context, apiKey string, _ log.Logger) (Embedder, error) {
		gotKey = apiKey
		return &fakeEmbedder{vec: []float32{1}}, nil
	}
	r := New(factory, "platform-key", &fakeSearcher{}, Config{}, log.NewNop())

	r.Retrieve(context.Background(), keyedTenant(), "q")
	if gotKey != "tenant-key" {
		t.Errorf("embedder key = %q, want the tenant's own key", gotKey)
	}

	noKey := keyedTenant()
	noKey.OpenAIAPIKey = ""
	r.Retrieve(context.Background(), noKey, "q")
	if gotKey != "platform-key" {
		t.Errorf("embedder key = %q, want the platform fallback", gotKey)
	}
}

func TestRetrieveDegradesWithoutCredential(t *testing.T) {
	called := false
	factory := func(context.Context, string, log.Logger) (Embedder, error) {
		called = true
		return &fakeEmbedder{vec: []float32{1}}, nil
	}
	r := New(factory, "", &fakeSearcher{}, Config{}, log.NewNop())

	noKey := keyedTenant()
	noKey.OpenAIAPIKey = ""
	got := r.Retrieve(context.Background(), noKey, "question")
	if !got.Empty() {
		t.Error("missing credential must collapse to an empty result")
	}
	if called {
		t.Error("embedder must not be built without a credential")
	}
}

func TestRetrieveDegradesOnEmbeddingError(t *testing.T) {
	r := New(fixedFactory(&fakeEmbedder{err: errors.New("rate limited")}), "", &fakeSearcher{}, Config{}, log.NewNop())

	got := r.Retrieve(context.Background(), keyedTenant(), "question")
	if !got.Empty() {
		t.Error("embedding failure must collapse to an empty result")
	}
}

func TestRetrieveDegradesOnSearchError(t *testing.T) {
	r := New(fixedFactory(&fakeEmbedder{vec: []float32{1}}), "", &fakeSearcher{err: errors.New("db down")}, Config{}, log.NewNop())

	got := r.Retrieve(context.Background(), keyedTenant(), "question")
	if !got.Empty() {
		t.Error("search failure must collapse to an empty result")
	}
}

func TestPromptText(t *testing.T) {
	res := Result{Chunks: []knowledge.SearchResult{
		{Content: "Refunds take 5 business days.", DocumentTitle: "Billing FAQ", Similarity: 0.9},
		{Content: "Contact support for chargebacks.", DocumentTitle: "Billing FAQ", Similarity: 0.8},
	}}

	text := res.PromptText()
	if !strings.Contains(text, "[Source: Billing FAQ]") {
		t.Errorf("missing source title: %q", text)
	}
	if !strings.Contains(text, "\n\n---\n\n") {
		t.Errorf("chunks not separated: %q", text)
	}
	if strings.Index(text, "Refunds") > strings.Index(text, "chargebacks") {
		t.Error("chunks must keep search order, strongest first")
	}

	if (Result{}).PromptText() != "" {
		t.Error("empty result must render to empty string")
	}
}

func TestPromptTextUntitledDocument(t *testing.T) {
	res := Result{Chunks: []knowledge.SearchResult{
		{Content: "Refunds take 5 business days.", Similarity: 0.9},
		{Content: "Contact support for chargebacks.", DocumentTitle: "Billing FAQ", Similarity: 0.8},
	}}

	text := res.PromptText()
	if strings.Contains(text, "[Source: ]") {
		t.Errorf("untitled document must not get an empty source prefix: %q", text)
	}
	if !strings.HasPrefix(text, "Refunds take") {
		t.Errorf("untitled chunk must render content only: %q", text)
	}
	if !strings.Contains(text, "[Source: Billing FAQ]") {
		t.Errorf("titled chunk must keep its prefix: %q", text)
	}
}

func TestConfigOverrides(t *testing.T) {
	searcher := &fakeSearcher{results: []knowledge.SearchResult{
		{Content: "x", DocumentTitle: "d", Similarity: 0.6},
	}}
	r := New(fixedFactory(&fakeEmbedder{vec: []float32{1}}), "", searcher, Config{TopK: 7, MinSimilarity: 0.7}, log.NewNop())

	got := r.Retrieve(context.Background(), keyedTenant(), "q")
	if searcher.limit != 7 {
		t.Errorf("limit = %d, want 7", searcher.limit)
	}
	if !got.Empty() {
		t.Error("0.6 similarity must not pass a 0.7 floor")
	}
}
