// Package sqlite mirrors analysis artifacts into a single sqlite database.
// One row per contract fingerprint holds the source and every artifact
// column; a second table logs repair attempts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// Store is the sqlite ArtifactStore and AttemptRecorder.
type Store struct {
	db     *sql.DB
	path   string
	log    *zap.Logger
	mu     sync.Mutex
	closed bool
}

var (
	_ store.ArtifactStore   = (*Store)(nil)
	_ store.AttemptRecorder = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logging.Component(l, "sqlite") }
}

// Open opens (creating if needed) the database at path and brings its
// schema up to date.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; one connection keeps WAL readers consistent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Name implements store.ArtifactStore.
func (s *Store) Name() string { return "sqlite" }

// Path returns the database file.
func (s *Store) Path() string { return s.path }

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Ping implements store.Store.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Close implements store.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// SaveContract upserts the contract row. Re-analysing a contract clears the
// artifact columns so stale results from an earlier session do not linger.
// analysed_at is set here only; artifact writes move updated_at.
func (s *Store) SaveContract(ctx context.Context, sessionID string, c *domain.Contract) error {
	if err := s.check(); err != nil {
		return err
	}
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contracts (id, filename, content, session_id, analysed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content = excluded.content,
			session_id = excluded.session_id,
			functions_report = NULL,
			journey_report = NULL,
			journey_diagram = NULL,
			call_diagram = NULL,
			combined_report = NULL,
			analysed_at = excluded.analysed_at,
			updated_at = excluded.updated_at
	`, c.Fingerprint, c.Filename, c.Source, sessionID, now, now)
	if err != nil {
		return fmt.Errorf("save contract %s: %w", c.Filename, err)
	}
	return nil
}

// SaveArtifact writes a into its column. Kinds without a column are
// accepted and ignored. A row that is missing, or that a later session has
// taken over, is left untouched: the file tree remains the record for that
// session.
func (s *Store) SaveArtifact(ctx context.Context, sessionID string, a *domain.Artifact) error {
	if err := s.check(); err != nil {
		return err
	}
	col := a.Kind.Column()
	if col == "" {
		return nil
	}
	at := a.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	// col comes from the fixed kind table, never from input.
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE contracts SET %s = ?, updated_at = ? WHERE id = ? AND session_id = ?`, col),
		a.Text, formatTime(at), a.Contract, sessionID)
	if err != nil {
		return fmt.Errorf("save %s: %w", a.Kind, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.log.Debug("no row for artifact",
			zap.String("session", sessionID),
			zap.String("fingerprint", a.Contract),
			zap.String("kind", string(a.Kind)))
	}
	return nil
}

// LoadArtifact reads one column. NULL, an unknown fingerprint and a row
// that now belongs to another session all count as not found.
func (s *Store) LoadArtifact(ctx context.Context, sessionID, fingerprint string, kind domain.Kind) (*domain.Artifact, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	col := kind.Column()
	if col == "" {
		return nil, store.NewNotFoundError("artifact", string(kind))
	}
	var (
		text    sql.NullString
		session sql.NullString
		at      sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s, session_id, COALESCE(updated_at, analysed_at) FROM contracts WHERE id = ?`, col),
		fingerprint).Scan(&text, &session, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewNotFoundError("contract", fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}
	if session.String != sessionID || !text.Valid {
		return nil, store.NewNotFoundError("artifact", fingerprint+"/"+string(kind))
	}
	return domain.NewArtifact(kind, fingerprint, text.String, parseTime(at.String)), nil
}

// Record is one full contracts row.
type Record struct {
	Fingerprint     string
	Filename        string
	SessionID       string
	Content         string
	FunctionsReport string
	JourneyReport   string
	JourneyDiagram  string
	CallDiagram     string
	CombinedReport  string
	AnalysedAt      time.Time
	UpdatedAt       time.Time // last artifact write, repairs included
}

// Text returns the column value for kind.
func (r *Record) Text(kind domain.Kind) string {
	switch kind.Column() {
	case "content":
		return r.Content
	case "functions_report":
		return r.FunctionsReport
	case "journey_report":
		return r.JourneyReport
	case "journey_diagram":
		return r.JourneyDiagram
	case "call_diagram":
		return r.CallDiagram
	case "combined_report":
		return r.CombinedReport
	}
	return ""
}

const recordColumns = `id, filename, session_id, content, functions_report, journey_report,
	journey_diagram, call_diagram, combined_report, analysed_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		r        Record
		session  sql.NullString
		content  sql.NullString
		fr       sql.NullString
		jr       sql.NullString
		jd       sql.NullString
		cd       sql.NullString
		combined sql.NullString
		at       sql.NullString
		updated  sql.NullString
	)
	if err := row.Scan(&r.Fingerprint, &r.Filename, &session, &content, &fr, &jr, &jd, &cd, &combined, &at, &updated); err != nil {
		return nil, err
	}
	r.SessionID = session.String
	r.Content = content.String
	r.FunctionsReport = fr.String
	r.JourneyReport = jr.String
	r.JourneyDiagram = jd.String
	r.CallDiagram = cd.String
	r.CombinedReport = combined.String
	r.AnalysedAt = parseTime(at.String)
	r.UpdatedAt = r.AnalysedAt
	if updated.Valid {
		r.UpdatedAt = parseTime(updated.String)
	}
	return &r, nil
}

// Get returns the row for fingerprint.
func (s *Store) Get(ctx context.Context, fingerprint string) (*Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	r, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM contracts WHERE id = ?`, fingerprint))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NewNotFoundError("contract", fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("get contract: %w", err)
	}
	return r, nil
}

// filterColumns whitelists the fields a Filter may constrain.
var filterColumns = map[string]string{
	"session_id":  "session_id",
	"fingerprint": "id",
	"filename":    "filename",
	"kind":        "kind",
	"outcome":     "outcome",
}

// where builds a WHERE clause from f; fingerprint maps to idColumn.
func where(f store.Filter, idColumn string) (string, []any, error) {
	fields := make([]string, 0, len(f.Where))
	for field := range f.Where {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var (
		clauses []string
		args    []any
	)
	for _, field := range fields {
		col, ok := filterColumns[field]
		if !ok {
			return "", nil, fmt.Errorf("cannot filter on %q", field)
		}
		if field == "fingerprint" {
			col = idColumn
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, f.Where[field])
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func page(f store.Filter, orderColumn string) string {
	q := " ORDER BY " + orderColumn
	if f.OrderDesc {
		q += " DESC"
	}
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}
	return q
}

// List returns contract rows matching f, most recently analysed first by default.
func (s *Store) List(ctx context.Context, f store.Filter) ([]*Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	clause, args, err := where(f, "id")
	if err != nil {
		return nil, err
	}
	if _, ok := f.Where["kind"]; ok {
		return nil, fmt.Errorf("cannot filter contracts on %q", "kind")
	}
	if _, ok := f.Where["outcome"]; ok {
		return nil, fmt.Errorf("cannot filter contracts on %q", "outcome")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM contracts`+clause+page(f, "analysed_at"), args...)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayouts accepts what this package writes plus the ISO forms found in
// databases created by earlier releases.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
