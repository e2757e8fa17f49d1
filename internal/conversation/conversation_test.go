package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relaydesk/relaydesk/internal/log"
)

type fakeRow struct {
	id  string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.id
	return nil
}

type fakeDB struct {
	row     fakeRow
	execErr error
	execs   []capturedStmt
}

type capturedStmt struct {
	sql  string
	args []any
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return db.row
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execs = append(db.execs, capturedStmt{sql: sql, args: args})
	return pgconn.CommandTag{}, db.execErr
}

func TestRecordTurnExistingConversation(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: fakeRow{id: "conv-1"}}
	store := NewStore(db, log.NewNop())

	err := store.RecordTurn(context.Background(), "t-1", "session-abc", "how do refunds work?", "Refunds take 5-7 days.")
	if err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}

	// two message inserts plus the updated_at touch, no conversation insert
	if len(db.execs) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(db.execs))
	}
	if db.execs[0].args[2] != RoleUser || db.execs[0].args[3] != "how do refunds work?" {
		t.Errorf("user message args = %v", db.execs[0].args)
	}
	if db.execs[1].args[2] != RoleAssistant {
		t.Errorf("assistant message args = %v", db.execs[1].args)
	}
	if !strings.Contains(db.execs[2].sql, "UPDATE conversations") {
		t.Errorf("last statement = %q, want conversation touch", db.execs[2].sql)
	}
}

func TestRecordTurnCreatesConversation(t *testing.T) {
	t.Parallel()

	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	store := NewStore(db, log.NewNop())

	if err := store.RecordTurn(context.Background(), "t-1", "session-new", "hi", "hello"); err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}

	if len(db.execs) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(db.execs))
	}
	if !strings.Contains(db.execs[0].sql, "INSERT INTO conversations") {
		t.Errorf("first statement = %q, want conversation insert", db.execs[0].sql)
	}
	if db.execs[0].args[1] != "t-1" || db.execs[0].args[2] != "session-new" {
		t.Errorf("conversation insert args = %v", db.execs[0].args)
	}
}

func TestRecordTurnLookupError(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection refused")
	db := &fakeDB{row: fakeRow{err: dbErr}}
	store := NewStore(db, log.NewNop())

	err := store.RecordTurn(context.Background(), "t-1", "s", "q", "a")
	if !errors.Is(err, dbErr) {
		t.Fatalf("RecordTurn() error = %v, want wrapped %v", err, dbErr)
	}
	if len(db.execs) != 0 {
		t.Error("statements issued despite lookup failure")
	}
}
