package repair

import (
	"context"
	"time"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// State is the condition of one persisted artifact.
type State string

const (
	StatePresent State = "present"
	StateMissing State = "missing"
	StateInvalid State = "invalid"
	StateError   State = "error"
)

// ArtifactStatus describes one artifact of a contract.
type ArtifactStatus struct {
	Kind      domain.Kind
	State     State
	Reason    validate.Reason
	Bytes     int
	UpdatedAt time.Time
	Err       error
}

// Status reports the condition of every artifact kind for a contract.
// Diagram validity is recomputed on each call.
func (c *Controller) Status(ctx context.Context, sessionID, fingerprint string) []ArtifactStatus {
	validator := c.gen.Validator()
	out := make([]ArtifactStatus, 0, len(domain.AllKinds))
	for _, kind := range domain.AllKinds {
		st := ArtifactStatus{Kind: kind}
		a, err := c.store.LoadArtifact(ctx, sessionID, fingerprint, kind)
		switch {
		case store.IsNotFound(err):
			st.State = StateMissing
			st.Reason = validate.ReasonMissing
		case err != nil:
			st.State = StateError
			st.Err = err
		default:
			st.Bytes = len(a.Text)
			st.UpdatedAt = a.GeneratedAt
			st.State = StatePresent
			st.Reason = validate.ReasonOK
			if kind.IsDiagram() {
				if _, st.Reason = validator.Check(a.Text); st.Reason != validate.ReasonOK {
					st.State = StateInvalid
				}
			}
		}
		out = append(out, st)
	}
	return out
}

// NeedsRepair reports whether any diagram in statuses is missing or invalid.
func NeedsRepair(statuses []ArtifactStatus) bool {
	for _, st := range statuses {
		if st.Kind.IsDiagram() && st.State != StatePresent {
			return true
		}
	}
	return false
}
