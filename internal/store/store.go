// Package store defines the persistence ports for analysis artifacts.
// Adapters live in the filetree and sqlite subpackages; Mirror fans
// writes out to several adapters.
package store

import (
	"context"
	"time"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// Store is the minimal interface all stores must implement.
type Store interface {
	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// ArtifactStore persists contracts and the artifacts derived from them.
// Every artifact is addressed by (session, contract fingerprint, kind).
type ArtifactStore interface {
	Store
	// Name identifies the adapter in errors and logs.
	Name() string
	// SaveContract registers a contract in a session and persists its source.
	SaveContract(ctx context.Context, sessionID string, c *domain.Contract) error
	// SaveArtifact writes an artifact, overwriting any previous version.
	SaveArtifact(ctx context.Context, sessionID string, a *domain.Artifact) error
	// LoadArtifact reads the currently persisted artifact. Absent artifacts
	// yield an error matching ErrNotFound.
	LoadArtifact(ctx context.Context, sessionID, fingerprint string, kind domain.Kind) (*domain.Artifact, error)
}

// Catalog enumerates sessions and their contracts.
type Catalog interface {
	CreateSession(ctx context.Context, at time.Time) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]*domain.Session, error)
	ListContracts(ctx context.Context, sessionID string) ([]domain.ContractRef, error)
}

// AttemptRecorder keeps the log of repair attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a *domain.RepairAttempt) error
	ListAttempts(ctx context.Context, filter Filter) ([]*domain.RepairAttempt, error)
}

// Filter defines query parameters for listing records.
type Filter struct {
	Limit     int               // Maximum results (0 = no limit)
	Offset    int               // Skip first N results
	OrderDesc bool              // Newest first if true
	Where     map[string]string // Field equality conditions
}

// DefaultFilter returns a filter with sensible defaults.
func DefaultFilter() Filter {
	return Filter{
		Limit:     100,
		Offset:    0,
		OrderDesc: true,
	}
}

// WithLimit returns a copy of the filter with a new limit.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// WithOffset returns a copy of the filter with a new offset.
func (f Filter) WithOffset(n int) Filter {
	f.Offset = n
	return f
}

// WithWhere returns a copy of the filter with an added condition.
func (f Filter) WithWhere(field, value string) Filter {
	where := make(map[string]string, len(f.Where)+1)
	for k, v := range f.Where {
		where[k] = v
	}
	where[field] = value
	f.Where = where
	return f
}
