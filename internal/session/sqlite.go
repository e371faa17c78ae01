package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hireloop/portalchat/internal/apperr"
	"github.com/hireloop/portalchat/internal/db"
)

// SQLiteStore persists sessions and turns in the portalchat database so
// conversations survive restarts.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore wraps an opened database.
func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// timeLayout keeps a fixed-width fraction so string comparison in SQL
// matches chronological order (RFC3339Nano drops trailing zeros).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, subject_id, visitor_id, state, created_at, last_activity_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SubjectID, sess.VisitorID, string(sess.State),
		sess.CreatedAt.UTC().Format(timeLayout), sess.LastActivityAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, visitor_id, state, created_at, last_activity_at
		 FROM chat_sessions WHERE id = ?`, id)

	var sess Session
	var state, createdAt, lastActivity string
	err := row.Scan(&sess.ID, &sess.SubjectID, &sess.VisitorID, &state, &createdAt, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	sess.State = State(state)
	if sess.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if sess.LastActivityAt, err = time.Parse(timeLayout, lastActivity); err != nil {
		return nil, fmt.Errorf("parsing last_activity_at: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) UpdateState(ctx context.Context, id string, state State) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("updating session state: %w", err)
	}
	return requireRow(res)
}

func (s *SQLiteStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chat_sessions SET last_activity_at = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	return requireRow(res)
}

// AppendTurns inserts the batch inside one transaction so a partially
// written exchange can never be observed.
func (s *SQLiteStore) AppendTurns(ctx context.Context, sessionID string, turns []Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, turn := range turns {
		sources, err := json.Marshal(turn.Sources)
		if err != nil {
			return fmt.Errorf("encoding sources: %w", err)
		}
		var confidence any
		if turn.Confidence != nil {
			confidence = *turn.Confidence
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_turns (id, session_id, seq, role, content, sources, confidence, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			turn.ID, sessionID, turn.Seq, string(turn.Role), turn.Content,
			string(sources), confidence, turn.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("inserting turn %d: %w", turn.Seq, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, seq, role, content, sources, confidence, created_at
		 FROM chat_turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var role, sources, createdAt string
		var confidence sql.NullFloat64
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Seq, &role, &turn.Content,
			&sources, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turn.Role = Role(role)
		if err := json.Unmarshal([]byte(sources), &turn.Sources); err != nil {
			return nil, fmt.Errorf("decoding sources: %w", err)
		}
		if confidence.Valid {
			c := confidence.Float64
			turn.Confidence = &c
		}
		if turn.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) CountTurns(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_turns WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) CountActiveByVisitor(ctx context.Context, visitorID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions WHERE visitor_id = ? AND state = 'active'`,
		visitorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return n, nil
}

// ExpireIdle selects and updates inside one transaction so the returned
// IDs are exactly the sessions this call expired.
func (s *SQLiteStore) ExpireIdle(ctx context.Context, cutoff time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM chat_sessions
		 WHERE state = 'active' AND last_activity_at < ?`,
		cutoff.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("selecting idle sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning session id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE chat_sessions SET state = 'expired'
			 WHERE state = 'active' AND last_activity_at < ?`,
			cutoff.UTC().Format(timeLayout))
		if err != nil {
			return nil, fmt.Errorf("expiring idle sessions: %w", err)
		}
	}
	return ids, tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.CodeNotFound, "session not found", nil)
	}
	return nil
}
