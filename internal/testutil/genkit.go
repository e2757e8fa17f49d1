// Package testutil provides deterministic fakes for the generation and
// retrieval stack: a scripted model, a scripted embedder, and an in-memory
// span tracer. All fakes are safe for concurrent use.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// NewGenkit returns a fresh Genkit instance with no provider plugins.
// Each test gets its own instance so model and embedder registrations
// cannot leak between tests.
func NewGenkit(t *testing.T) *genkit.Genkit {
	t.Helper()
	return genkit.Init(context.Background())
}

// DiscardLogger returns a slog.Logger that drops all output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
