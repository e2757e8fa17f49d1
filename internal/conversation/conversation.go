// Package conversation persists chat transcripts.
//
// Transcripts are written best-effort after each completed turn: the chat
// path never fails because a transcript could not be stored, it only logs.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Role mirrors the message_role enum.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DB is the subset of pgxpool.Pool the store needs.
// Defined by the consumer so tests can substitute a fake.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store appends chat turns to the conversations and messages tables.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// NewStore creates a transcript Store backed by the given database
// (a *pgxpool.Pool in production).
func NewStore(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// RecordTurn appends a completed user/assistant exchange to the session's
// conversation, creating the conversation row on first use of the session.
func (s *Store) RecordTurn(ctx context.Context, tenantID, sessionID, userText, assistantText string) error {
	convID, err := s.ensureConversation(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}

	if err := s.appendMessage(ctx, convID, RoleUser, userText); err != nil {
		return err
	}
	if err := s.appendMessage(ctx, convID, RoleAssistant, assistantText); err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, convID); err != nil {
		return fmt.Errorf("touching conversation %q: %w", convID, err)
	}

	s.logger.Debug("turn recorded", "tenant_id", tenantID, "session_id", sessionID)
	return nil
}

func (s *Store) ensureConversation(ctx context.Context, tenantID, sessionID string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`SELECT id FROM conversations WHERE tenant_id = $1 AND session_id = $2`,
		tenantID, sessionID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("looking up conversation for session %q: %w", sessionID, err)
	}

	id = uuid.NewString()
	if _, err := s.db.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, session_id) VALUES ($1, $2, $3)`,
		id, tenantID, sessionID); err != nil {
		return "", fmt.Errorf("creating conversation for session %q: %w", sessionID, err)
	}
	return id, nil
}

func (s *Store) appendMessage(ctx context.Context, conversationID string, role Role, content string) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content) VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), conversationID, role, content); err != nil {
		return fmt.Errorf("appending %s message: %w", role, err)
	}
	return nil
}
