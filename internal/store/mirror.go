package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// Mirror writes every artifact to a primary adapter and its replicas.
// Reads come from the primary and fall back to replicas in order when the
// primary has nothing.
type Mirror struct {
	primary  ArtifactStore
	replicas []ArtifactStore
}

var _ ArtifactStore = (*Mirror)(nil)

// NewMirror combines adapters; the first is the primary.
func NewMirror(primary ArtifactStore, replicas ...ArtifactStore) *Mirror {
	return &Mirror{primary: primary, replicas: replicas}
}

func (m *Mirror) all() []ArtifactStore {
	return append([]ArtifactStore{m.primary}, m.replicas...)
}

// Name implements ArtifactStore.
func (m *Mirror) Name() string { return "mirror" }

// Ping checks every adapter.
func (m *Mirror) Ping(ctx context.Context) error {
	var errs []error
	for _, s := range m.all() {
		if err := s.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every adapter.
func (m *Mirror) Close() error {
	var errs []error
	for _, s := range m.all() {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SaveContract registers c with every adapter. A failing adapter does not
// stop the others.
func (m *Mirror) SaveContract(ctx context.Context, sessionID string, c *domain.Contract) error {
	var errs []error
	for _, s := range m.all() {
		if err := s.SaveContract(ctx, sessionID, c); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SaveArtifact writes a to every adapter. A failing adapter does not stop
// the others.
func (m *Mirror) SaveArtifact(ctx context.Context, sessionID string, a *domain.Artifact) error {
	var errs []error
	for _, s := range m.all() {
		if err := s.SaveArtifact(ctx, sessionID, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LoadArtifact reads from the primary, then from each replica while the
// answer is "not found". Other errors are returned immediately.
func (m *Mirror) LoadArtifact(ctx context.Context, sessionID, fingerprint string, kind domain.Kind) (*domain.Artifact, error) {
	var firstErr error
	for _, s := range m.all() {
		a, err := s.LoadArtifact(ctx, sessionID, fingerprint, kind)
		if err == nil {
			return a, nil
		}
		if !IsNotFound(err) {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}
