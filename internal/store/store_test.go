package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// memStore is an in-memory ArtifactStore used to exercise Mirror.
type memStore struct {
	name      string
	artifacts map[string]*domain.Artifact
	saveErr   error
	loadErr   error
	closed    bool
}

func newMem(name string) *memStore {
	return &memStore{name: name, artifacts: map[string]*domain.Artifact{}}
}

func key(session, fp string, k domain.Kind) string {
	return fmt.Sprintf("%s/%s/%s", session, fp, k)
}

func (m *memStore) Name() string { return m.name }
func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error { m.closed = true; return nil }

func (m *memStore) SaveContract(_ context.Context, session string, c *domain.Contract) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.artifacts[key(session, c.Fingerprint, domain.KindSource)] = domain.NewArtifact(domain.KindSource, c.Fingerprint, c.Source, time.Now())
	return nil
}

func (m *memStore) SaveArtifact(_ context.Context, session string, a *domain.Artifact) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.artifacts[key(session, a.Contract, a.Kind)] = a
	return nil
}

func (m *memStore) LoadArtifact(_ context.Context, session, fp string, k domain.Kind) (*domain.Artifact, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	a, ok := m.artifacts[key(session, fp, k)]
	if !ok {
		return nil, NewNotFoundError("artifact", key(session, fp, k))
	}
	return a, nil
}

// --- Error Tests ---

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("artifact", "abc")

	assert.EqualError(t, err, "artifact not found: abc")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(errors.New("other")))

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "artifact", nf.Entity)
}

func TestInvalidIDError(t *testing.T) {
	err := InvalidIDError("session", "yesterday")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Contains(t, err.Error(), `"yesterday"`)
}

// --- Filter Tests ---

func TestFilter(t *testing.T) {
	f := DefaultFilter()
	assert.Equal(t, 100, f.Limit)
	assert.True(t, f.OrderDesc)

	f2 := f.WithLimit(5).WithOffset(2).WithWhere("session_id", "analysis_20250101_000000")
	assert.Equal(t, 5, f2.Limit)
	assert.Equal(t, 2, f2.Offset)
	assert.Equal(t, "analysis_20250101_000000", f2.Where["session_id"])

	f3 := f2.WithWhere("fingerprint", "abc")
	assert.Len(t, f3.Where, 2)
	assert.Len(t, f2.Where, 1, "original filter was mutated")
	assert.Nil(t, f.Where)
}

// --- Mirror Tests ---

func TestMirrorWritesEverywhere(t *testing.T) {
	primary, replica := newMem("files"), newMem("db")
	m := NewMirror(primary, replica)
	ctx := context.Background()
	c := domain.NewContract("/src/C.sol", "contract C {}")

	require.NoError(t, m.SaveContract(ctx, "s1", c))
	require.NoError(t, m.SaveArtifact(ctx, "s1", domain.NewArtifact(domain.KindFunctionsReport, c.Fingerprint, "fr", time.Now())))

	for _, s := range []*memStore{primary, replica} {
		assert.Len(t, s.artifacts, 2, s.name)
	}
}

func TestMirrorSaveJoinsErrors(t *testing.T) {
	primary, replica := newMem("files"), newMem("db")
	replica.saveErr = errors.New("disk full")
	m := NewMirror(primary, replica)

	err := m.SaveArtifact(context.Background(), "s1", domain.NewArtifact(domain.KindCallDiagram, "fp", "flowchart TD", time.Now()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: disk full")
	assert.Len(t, primary.artifacts, 1, "primary still written")
}

func TestMirrorLoadFallsBack(t *testing.T) {
	primary, replica := newMem("files"), newMem("db")
	m := NewMirror(primary, replica)
	ctx := context.Background()
	replica.artifacts[key("s1", "fp", domain.KindJourneyReport)] = domain.NewArtifact(domain.KindJourneyReport, "fp", "from db", time.Now())

	a, err := m.LoadArtifact(ctx, "s1", "fp", domain.KindJourneyReport)
	require.NoError(t, err)
	assert.Equal(t, "from db", a.Text)

	_, err = m.LoadArtifact(ctx, "s1", "fp", domain.KindCallDiagram)
	assert.True(t, IsNotFound(err))
}

func TestMirrorLoadStopsOnHardError(t *testing.T) {
	primary, replica := newMem("files"), newMem("db")
	primary.loadErr = errors.New("permission denied")
	replica.artifacts[key("s1", "fp", domain.KindJourneyReport)] = domain.NewArtifact(domain.KindJourneyReport, "fp", "x", time.Now())

	_, err := NewMirror(primary, replica).LoadArtifact(context.Background(), "s1", "fp", domain.KindJourneyReport)

	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "files: permission denied")
}

func TestMirrorClose(t *testing.T) {
	primary, replica := newMem("files"), newMem("db")

	require.NoError(t, NewMirror(primary, replica).Close())

	assert.True(t, primary.closed)
	assert.True(t, replica.closed)
}
