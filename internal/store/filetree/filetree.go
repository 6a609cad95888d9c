// Package filetree persists artifacts as loose UTF-8 files, one directory
// per session:
//
//	<root>/analysis_20250102_150405/
//	    index.yaml
//	    Token_original.sol
//	    Token_functions_report.md
//	    ...
//
// Contracts are keyed by fingerprint through index.yaml. Sessions written
// without an index are still readable: their contracts are recovered from
// the *_analysis_report.md files and keyed by base name.
package filetree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// Store is the file-tree ArtifactStore and Catalog.
type Store struct {
	root string
	log  *zap.Logger
}

var (
	_ store.ArtifactStore = (*Store)(nil)
	_ store.Catalog       = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logging.Component(l, "filetree") }
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	s := &Store{root: root, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements store.ArtifactStore.
func (s *Store) Name() string { return "filetree" }

// Root returns the directory holding the session directories.
func (s *Store) Root() string { return s.root }

// Ping checks that the root is still a directory.
func (s *Store) Ping(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// SessionDir returns the directory of a session.
func (s *Store) SessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID)
}

func (s *Store) sessionDir(sessionID string) (string, error) {
	if !domain.IsSessionID(sessionID) {
		return "", store.InvalidIDError("session", sessionID)
	}
	return s.SessionDir(sessionID), nil
}

// CreateSession makes a new session directory named after at. When that
// second is already taken the timestamp advances until a free name is found.
func (s *Store) CreateSession(ctx context.Context, at time.Time) (*domain.Session, error) {
	at = at.Truncate(time.Second)
	for {
		id := domain.SessionID(at)
		dir := s.SessionDir(id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			if err := writeIndex(dir, &Index{Session: id}); err != nil {
				return nil, err
			}
			s.log.Debug("session created", zap.String("session", id), zap.String("dir", dir))
			return &domain.Session{ID: id, CreatedAt: at, Dir: dir}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create session dir %s: %w", dir, err)
		}
		at = at.Add(time.Second)
	}
}

// ListSessions returns every session directory under the root, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]*domain.Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.root, err)
	}
	var sessions []*domain.Session
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		created, err := domain.ParseSessionID(e.Name())
		if err != nil {
			continue
		}
		sessions = append(sessions, &domain.Session{
			ID:        e.Name(),
			CreatedAt: created,
			Dir:       s.SessionDir(e.Name()),
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// ListContracts returns the contracts of a session in the order they were
// added. Sessions without an index fall back to suffix parsing.
func (s *Store) ListContracts(ctx context.Context, sessionID string) ([]domain.ContractRef, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	idx, err := readIndex(dir)
	if err != nil {
		return nil, err
	}
	if idx != nil && len(idx.Contracts) > 0 {
		return append([]domain.ContractRef(nil), idx.Contracts...), nil
	}
	return s.legacyContracts(dir)
}

// legacyContracts recovers contracts from combined report file names. The
// base name doubles as the fingerprint.
func (s *Store) legacyContracts(dir string) ([]domain.ContractRef, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.NewNotFoundError("session", filepath.Base(dir))
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var refs []domain.ContractRef
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, kind, ok := domain.ParseFileName(e.Name())
		if !ok || kind != domain.KindCombinedReport {
			continue
		}
		ref := domain.ContractRef{Fingerprint: base, Name: base, Filename: base + ".sol"}
		if info, err := e.Info(); err == nil {
			ref.AddedAt = info.ModTime()
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// SaveContract adds c to the session index and writes its source copy.
func (s *Store) SaveContract(ctx context.Context, sessionID string, c *domain.Contract) error {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir %s: %w", dir, err)
	}
	idx, err := readIndex(dir)
	if err != nil {
		return err
	}
	if idx == nil {
		idx = &Index{Session: sessionID}
	}
	ref := idx.Add(c.Ref(time.Now()))
	if err := writeIndex(dir, idx); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, domain.KindSource.FileName(ref.Name)), []byte(c.Source))
}

// resolve returns the base name used for fingerprint's files.
func (s *Store) resolve(dir, fingerprint string) (string, error) {
	idx, err := readIndex(dir)
	if err != nil {
		return "", err
	}
	if ref, ok := idx.Lookup(fingerprint); ok {
		return ref.Name, nil
	}
	if idx == nil || len(idx.Contracts) == 0 {
		if fingerprint != "" && !strings.ContainsAny(fingerprint, `/\`) {
			if _, err := os.Stat(filepath.Join(dir, domain.KindCombinedReport.FileName(fingerprint))); err == nil {
				return fingerprint, nil
			}
		}
	}
	return "", store.NewNotFoundError("contract", fingerprint)
}

// SaveArtifact writes a to <base><suffix> in the session directory.
func (s *Store) SaveArtifact(ctx context.Context, sessionID string, a *domain.Artifact) error {
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown artifact kind %q", a.Kind)
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return err
	}
	base, err := s.resolve(dir, a.Contract)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, a.Kind.FileName(base))
	if err := writeAtomic(path, []byte(a.Text)); err != nil {
		return err
	}
	s.log.Debug("artifact saved", zap.String("path", path))
	return nil
}

// LoadArtifact reads the persisted artifact; its timestamp is the file's
// modification time.
func (s *Store) LoadArtifact(ctx context.Context, sessionID, fingerprint string, kind domain.Kind) (*domain.Artifact, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown artifact kind %q", kind)
	}
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	base, err := s.resolve(dir, fingerprint)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, kind.FileName(base))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.NewNotFoundError("artifact", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	at := time.Time{}
	if info, err := os.Stat(path); err == nil {
		at = info.ModTime()
	}
	return domain.NewArtifact(kind, fingerprint, string(data), at), nil
}

// ArtifactPath returns the file that holds kind for fingerprint.
func (s *Store) ArtifactPath(sessionID, fingerprint string, kind domain.Kind) (string, error) {
	dir, err := s.sessionDir(sessionID)
	if err != nil {
		return "", err
	}
	base, err := s.resolve(dir, fingerprint)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, kind.FileName(base)), nil
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
