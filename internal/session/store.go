package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lectern-ai/lectern/internal/log"
)

const createSessionSQL = `
INSERT INTO sessions DEFAULT VALUES
RETURNING id, created_at, updated_at`

const getSessionSQL = `
SELECT id, created_at, updated_at FROM sessions WHERE id = $1`

const lockSessionSQL = `
SELECT id FROM sessions WHERE id = $1 FOR UPDATE`

const maxSeqSQL = `
SELECT COALESCE(MAX(seq), 0) FROM exchanges WHERE session_id = $1`

const insertExchangeSQL = `
INSERT INTO exchanges (session_id, seq, user_query, assistant_answer)
VALUES ($1, $2, $3, $4)`

const touchSessionSQL = `
UPDATE sessions SET updated_at = now() WHERE id = $1`

const historySQL = `
SELECT seq, user_query, assistant_answer, created_at
FROM (
    SELECT seq, user_query, assistant_answer, created_at
    FROM exchanges
    WHERE session_id = $1
    ORDER BY seq DESC
    LIMIT $2
) latest
ORDER BY seq`

const exchangesSQL = `
SELECT seq, user_query, assistant_answer, created_at
FROM exchanges
WHERE session_id = $1
ORDER BY seq`

const clearExchangesSQL = `
DELETE FROM exchanges WHERE session_id = $1`

const deleteSessionSQL = `
DELETE FROM sessions WHERE id = $1`

const listSessionsSQL = `
SELECT id, created_at, updated_at FROM sessions
ORDER BY updated_at DESC
LIMIT $1`

// Store persists sessions and their exchanges. It is safe for concurrent
// use; appends to the same session serialize on a row lock so sequence
// numbers never collide.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New creates a Store.
func New(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, errors.New("session: pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create starts a new empty session.
func (s *Store) Create(ctx context.Context) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, createSessionSQL).
		Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.logger.Debug("session created", "session_id", sess.ID)
	return &sess, nil
}

// Get loads a session by ID. Returns ErrSessionNotFound when it does not
// exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, getSessionSQL, id).
		Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// AppendExchange records one completed query/answer pair. The session row
// is locked for the duration so concurrent appends to the same session get
// consecutive sequence numbers instead of unique-constraint failures.
// Returns ErrSessionNotFound when the session does not exist.
func (s *Store) AppendExchange(ctx context.Context, id uuid.UUID, query, answer string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("session: query is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked uuid.UUID
	err = tx.QueryRow(ctx, lockSessionSQL, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}

	var maxSeq int
	if err := tx.QueryRow(ctx, maxSeqSQL, id).Scan(&maxSeq); err != nil {
		return fmt.Errorf("max sequence: %w", err)
	}
	seq := maxSeq + 1

	if _, err := tx.Exec(ctx, insertExchangeSQL, id, seq, query, answer); err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	if _, err := tx.Exec(ctx, touchSessionSQL, id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("exchange appended", "session_id", id, "seq", seq)
	return nil
}

// History returns the last limit exchanges rendered with FormatHistory,
// oldest first. A non-positive limit means DefaultHistoryLimit. Unknown
// sessions and sessions with no exchanges both yield "": history is
// advisory context, so a stale ID degrades to an empty prompt rather
// than an error.
func (s *Store) History(ctx context.Context, id uuid.UUID, limit int) (string, error) {
	limit = normalizeLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)

	rows, err := s.pool.Query(ctx, historySQL, id, limit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	exchanges, err := scanExchanges(rows)
	if err != nil {
		return "", err
	}
	return FormatHistory(exchanges), nil
}

// Exchanges returns the full transcript of a session in order. Returns
// ErrSessionNotFound when the session does not exist.
func (s *Store) Exchanges(ctx context.Context, id uuid.UUID) ([]Exchange, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, exchangesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("load exchanges: %w", err)
	}
	return scanExchanges(rows)
}

// Clear deletes a session's exchanges but keeps the session, so the same
// ID can continue with a fresh context. Returns ErrSessionNotFound when
// the session does not exist.
func (s *Store) Clear(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, touchSessionSQL, id)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	if _, err := tx.Exec(ctx, clearExchangesSQL, id); err != nil {
		return fmt.Errorf("clear exchanges: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("session cleared", "session_id", id)
	return nil
}

// Delete removes a session and, through the foreign key cascade, its
// exchanges. Returns ErrSessionNotFound when the session does not exist.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	s.logger.Debug("session deleted", "session_id", id)
	return nil
}

// List returns sessions most recently active first. A non-positive limit
// means DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Session, error) {
	limit = normalizeLimit(limit, DefaultListLimit, MaxListLimit)

	rows, err := s.pool.Query(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanExchanges(rows pgx.Rows) ([]Exchange, error) {
	defer rows.Close()

	var exchanges []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.Seq, &ex.Query, &ex.Answer, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		exchanges = append(exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return exchanges, nil
}
