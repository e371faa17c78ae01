package events

import (
	"context"
	"fmt"
	"time"

	"github.com/hireloop/portalchat/internal/db"
)

// Store persists events in the portalchat database as an audit trail.
type Store struct {
	db *db.DB
}

// NewStore wraps an opened database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// timeLayout keeps a fixed-width fraction so string comparison in SQL
// matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Create inserts an event.
func (s *Store) Create(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_events (id, type, subject_id, session_id, visitor_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.SubjectID, e.SessionID, e.VisitorID, e.Detail,
		e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Type      Type
	SessionID string
	Since     time.Time
	Limit     int
}

// List returns events newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Event, error) {
	query := `SELECT id, type, subject_id, session_id, visitor_id, detail, created_at
	          FROM chat_events WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if !filter.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var typ, createdAt string
		if err := rows.Scan(&e.ID, &typ, &e.SubjectID, &e.SessionID, &e.VisitorID, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = Type(typ)
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
