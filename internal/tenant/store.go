package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

// RowQuerier is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can substitute a fake.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store resolves tenants from PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     RowQuerier
	logger *slog.Logger
}

// NewStore creates a tenant Store backed by the given querier
// (a *pgxpool.Pool in production).
func NewStore(db RowQuerier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const tenantColumns = `id, name, slug, instructions, model_provider, model_name,
	temperature, welcome_message, openai_api_key, anthropic_api_key,
	google_api_key, widget_enabled, created_at, updated_at`

// BySlug resolves a tenant by its public widget slug.
// Returns ErrNotFound when no tenant exists for the slug.
func (s *Store) BySlug(ctx context.Context, slug string) (*Tenant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return s.scan(row, slug)
}

// ByID resolves a tenant by its primary key.
// Returns ErrNotFound when no tenant exists for the ID.
func (s *Store) ByID(ctx context.Context, id string) (*Tenant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return s.scan(row, id)
}

func (s *Store) scan(row pgx.Row, key string) (*Tenant, error) {
	var t Tenant
	var openaiKey, anthropicKey, googleKey *string

	err := row.Scan(
		&t.ID, &t.Name, &t.Slug, &t.Instructions, &t.Provider, &t.ModelName,
		&t.Temperature, &t.WelcomeMessage, &openaiKey, &anthropicKey,
		&googleKey, &t.WidgetEnabled, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return nil, fmt.Errorf("querying tenant %q: %w", key, err)
	}

	if openaiKey != nil {
		t.OpenAIAPIKey = *openaiKey
	}
	if anthropicKey != nil {
		t.AnthropicAPIKey = *anthropicKey
	}
	if googleKey != nil {
		t.GoogleAPIKey = *googleKey
	}

	s.logger.Debug("resolved tenant", "id", t.ID, "slug", t.Slug)
	return &t, nil
}
