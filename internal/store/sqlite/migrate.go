package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const baseSchema = `
CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	filename TEXT,
	content TEXT,
	functions_report TEXT,
	journey_report TEXT,
	call_diagram TEXT,
	analysed_at TEXT
);

CREATE TABLE IF NOT EXISTS repair_attempts (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	kind TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT,
	attempted_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_contract ON repair_attempts(session_id, fingerprint);
`

// addedColumns are the columns introduced after the first release, in the
// order they were added.
var addedColumns = []struct {
	Table  string
	Column string
	Type   string
}{
	{"contracts", "journey_diagram", "TEXT"},
	{"contracts", "session_id", "TEXT"},
	{"contracts", "combined_report", "TEXT"},
	{"contracts", "updated_at", "TEXT"},
}

// Migrate creates missing tables and adds missing columns. It is safe to run
// on every start, against a fresh file or one written by an older release.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	for _, c := range addedColumns {
		added, err := s.ensureColumn(ctx, c.Table, c.Column, c.Type)
		if err != nil {
			return err
		}
		if added {
			s.log.Info("database schema updated", zap.String("table", c.Table), zap.String("column", c.Column))
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_contracts_session ON contracts(session_id)`); err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

// Columns returns the column names of table in declaration order.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue any
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (s *Store) ensureColumn(ctx context.Context, table, column, typ string) (bool, error) {
	cols, err := s.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c == column {
			return false, nil
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)); err != nil {
		return false, fmt.Errorf("add column %s.%s: %w", table, column, err)
	}
	return true, nil
}
