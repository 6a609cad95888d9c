package sqlite

import (
	"context"
	"fmt"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// RecordAttempt appends a repair attempt to the log.
func (s *Store) RecordAttempt(ctx context.Context, a *domain.RepairAttempt) error {
	if err := s.check(); err != nil {
		return err
	}
	if a.ID == "" {
		return store.InvalidIDError("attempt", a.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repair_attempts (id, session_id, fingerprint, kind, outcome, detail, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.Fingerprint, string(a.Kind), string(a.Outcome), a.Detail, formatTime(a.AttemptedAt))
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// ListAttempts returns logged attempts matching f. Supported filter fields
// are session_id, fingerprint, kind and outcome.
func (s *Store) ListAttempts(ctx context.Context, f store.Filter) ([]*domain.RepairAttempt, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if _, ok := f.Where["filename"]; ok {
		return nil, fmt.Errorf("cannot filter attempts on %q", "filename")
	}
	clause, args, err := where(f, "fingerprint")
	if err != nil {
		return nil, err
	}
	// ULIDs sort by creation time; id breaks ties within one timestamp.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, fingerprint, kind, outcome, detail, attempted_at
		FROM repair_attempts`+clause+page(f, "id"), args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*domain.RepairAttempt
	for rows.Next() {
		var (
			a           domain.RepairAttempt
			kind        string
			outcome     string
			detail      *string
			attemptedAt string
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Fingerprint, &kind, &outcome, &detail, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Kind = domain.Kind(kind)
		a.Outcome = domain.RepairOutcome(outcome)
		if detail != nil {
			a.Detail = *detail
		}
		a.AttemptedAt = parseTime(attemptedAt)
		out = append(out, &a)
	}
	return out, rows.Err()
}
