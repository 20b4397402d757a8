package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps records in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tickets (
  ticket TEXT PRIMARY KEY,
  complaint_id INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT '',
  message_id TEXT NOT NULL DEFAULT '',
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) IsNew(ctx context.Context, ticket string) (bool, error) {
	_, ok, err := s.Get(ctx, ticket)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (s *SQLiteStore) Get(ctx context.Context, ticket string) (Record, bool, error) {
	var r Record
	err := s.db.QueryRowContext(ctx, `
SELECT ticket, complaint_id, status, message_id
FROM tickets
WHERE ticket = ?;
`, ticket).Scan(&r.Ticket, &r.ComplaintID, &r.Status, &r.MessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticket, complaint_id, status, message_id
FROM tickets
ORDER BY ticket;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Ticket, &r.ComplaintID, &r.Status, &r.MessageID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMultiple upserts records inside one transaction.
func (s *SQLiteStore) SaveMultiple(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tickets (ticket, complaint_id, status, message_id, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(ticket) DO UPDATE SET
  complaint_id = excluded.complaint_id,
  status = excluded.status,
  message_id = excluded.message_id,
  updated_at = CURRENT_TIMESTAMP;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Ticket, r.ComplaintID, r.Status, r.MessageID); err != nil {
			return fmt.Errorf("save ticket %s: %w", r.Ticket, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemoveIfExists(ctx context.Context, ticket string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tickets WHERE ticket = ?;`, ticket)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
