// Package repair checks persisted diagrams, regenerates the ones that fail
// validation, and answers free-text questions about a contract's reports.
//
// Regeneration always reads the currently persisted upstream report. A
// regenerated diagram replaces the stored one only when it validates, so a
// repair can never make an artifact worse.
package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/gateway"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/phase"
	"github.com/pxng0lin/DeepCurrent/internal/pipeline"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// ErrNoQueryModel is returned when a controller is built without a query model.
var ErrNoQueryModel = errors.New("query model is required")

// Controller runs integrity checks, repairs and queries against one store.
type Controller struct {
	gen        *phase.Generator
	gw         gateway.Invoker
	queryModel string
	store      store.ArtifactStore
	catalog    store.Catalog
	recorder   store.AttemptRecorder
	policy     Policy
	log        *zap.Logger
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy sets the regeneration policy. The default is Never.
func WithPolicy(p Policy) Option {
	return func(c *Controller) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithCatalog lets the controller resolve display names for contracts.
func WithCatalog(cat store.Catalog) Option {
	return func(c *Controller) { c.catalog = cat }
}

// WithRecorder logs every repair decision.
func WithRecorder(r store.AttemptRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = logging.Component(l, "repair") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. gen regenerates diagrams with the analysis model;
// gw answers queries with queryModel.
func New(gen *phase.Generator, gw gateway.Invoker, queryModel string, st store.ArtifactStore, opts ...Option) (*Controller, error) {
	if strings.TrimSpace(queryModel) == "" {
		return nil, ErrNoQueryModel
	}
	c := &Controller{
		gen:        gen,
		gw:         gw,
		queryModel: queryModel,
		store:      st,
		policy:     Never,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Step is the decision taken for one diagram.
type Step struct {
	Kind      domain.Kind
	Reason    validate.Reason // why the stored diagram was rejected, or ok
	Outcome   domain.RepairOutcome
	Detail    string
	AttemptID string
}

// Report is the result of CheckAndRepair for one contract.
type Report struct {
	SessionID string
	Contract  domain.ContractRef
	Steps     []Step
	// CombinedRebuilt is set when a repair refreshed the final report.
	CombinedRebuilt bool
	// Errors holds storage failures that did not stop the check.
	Errors []error
}

// Count returns the number of steps with outcome.
func (r *Report) Count(outcome domain.RepairOutcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// ResolveContract returns the index entry for fingerprint, or a bare
// reference when the catalog does not know it.
func (c *Controller) ResolveContract(ctx context.Context, sessionID, fingerprint string) domain.ContractRef {
	if c.catalog != nil {
		if refs, err := c.catalog.ListContracts(ctx, sessionID); err == nil {
			for _, ref := range refs {
				if ref.Fingerprint == fingerprint {
					return ref
				}
			}
		}
	}
	return domain.ContractRef{Fingerprint: fingerprint, Name: domain.ShortFingerprint(fingerprint)}
}

// CheckAndRepair validates the persisted journey and call diagrams of one
// contract and, where the policy agrees, regenerates the invalid or missing
// ones from their persisted upstream report.
func (c *Controller) CheckAndRepair(ctx context.Context, sessionID, fingerprint string) (*Report, error) {
	if !domain.IsSessionID(sessionID) {
		return nil, store.InvalidIDError("session", sessionID)
	}
	ref := c.ResolveContract(ctx, sessionID, fingerprint)
	rep := &Report{SessionID: sessionID, Contract: ref}
	log := c.log.With(zap.String("session", sessionID), zap.String("contract", ref.Name))

	for _, kind := range domain.DiagramKinds {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		step := c.checkOne(ctx, sessionID, ref, kind, log)
		if step.Outcome != domain.OutcomeValid {
			step.AttemptID = c.record(ctx, sessionID, fingerprint, step, rep)
		}
		rep.Steps = append(rep.Steps, step)
	}

	if rep.Count(domain.OutcomeRepaired) > 0 {
		if err := c.rebuildCombined(ctx, sessionID, ref); err != nil {
			log.Warn("failed to rebuild combined report", zap.Error(err))
			rep.Errors = append(rep.Errors, err)
		} else {
			rep.CombinedRebuilt = true
		}
	}
	return rep, nil
}

func (c *Controller) checkOne(ctx context.Context, sessionID string, ref domain.ContractRef, kind domain.Kind, log *zap.Logger) Step {
	step := Step{Kind: kind}
	log = log.With(zap.String("kind", string(kind)))
	validator := c.gen.Validator()

	current, err := c.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, kind)
	switch {
	case store.IsNotFound(err):
		step.Reason = validate.ReasonMissing
	case err != nil:
		step.Outcome = domain.OutcomeFailed
		step.Reason = validate.ReasonMissing
		step.Detail = err.Error()
		log.Warn("failed to load diagram", zap.Error(err))
		return step
	default:
		_, step.Reason = validator.Check(current.Text)
	}
	if step.Reason == validate.ReasonOK {
		step.Outcome = domain.OutcomeValid
		return step
	}

	if !c.policy.Confirm(ctx, ref, kind, step.Reason) {
		step.Outcome = domain.OutcomeDeclined
		step.Detail = string(step.Reason)
		return step
	}

	upstreamKind, _ := kind.Upstream()
	var missing []string
	upstream, err := c.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, upstreamKind)
	if err != nil {
		missing = append(missing, dependencyDetail(upstreamKind, err))
	}
	if _, err := c.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, domain.KindSource); err != nil {
		missing = append(missing, dependencyDetail(domain.KindSource, err))
	}
	if len(missing) > 0 {
		step.Outcome = domain.OutcomeMissingDependency
		step.Detail = strings.Join(missing, "; ")
		log.Info("cannot regenerate diagram", zap.String("detail", step.Detail))
		return step
	}

	start := time.Now()
	out, err := c.gen.Generate(ctx, kind, upstream.Text)
	if err != nil {
		step.Outcome = domain.OutcomeFailed
		step.Detail = err.Error()
		return step
	}
	if out.Substituted {
		step.Outcome = domain.OutcomeFailed
		step.Detail = "regenerated diagram invalid: " + string(out.Reason)
		log.Info("regenerated diagram rejected, keeping previous", zap.String("reason", string(out.Reason)))
		return step
	}
	if err := c.store.SaveArtifact(ctx, sessionID, domain.NewArtifact(kind, ref.Fingerprint, out.Text, c.now())); err != nil {
		step.Outcome = domain.OutcomeFailed
		step.Detail = err.Error()
		log.Warn("failed to persist regenerated diagram", zap.Error(err))
		return step
	}
	step.Outcome = domain.OutcomeRepaired
	logging.Timed(log, "diagram regenerated", start)
	return step
}

func dependencyDetail(kind domain.Kind, err error) string {
	if store.IsNotFound(err) {
		return kind.Title() + " not found"
	}
	return fmt.Sprintf("%s unreadable: %v", kind.Title(), err)
}

func (c *Controller) record(ctx context.Context, sessionID, fingerprint string, step Step, rep *Report) string {
	if c.recorder == nil {
		return ""
	}
	attempt := &domain.RepairAttempt{
		ID:          ulid.Make().String(),
		SessionID:   sessionID,
		Fingerprint: fingerprint,
		Kind:        step.Kind,
		Outcome:     step.Outcome,
		Detail:      step.Detail,
		AttemptedAt: c.now(),
	}
	if err := c.recorder.RecordAttempt(ctx, attempt); err != nil {
		c.log.Warn("failed to record repair attempt", zap.Error(err))
		rep.Errors = append(rep.Errors, err)
		return ""
	}
	return attempt.ID
}

func (c *Controller) rebuildCombined(ctx context.Context, sessionID string, ref domain.ContractRef) error {
	texts := make(map[domain.Kind]string, len(pipeline.CombinedSections))
	for _, k := range pipeline.CombinedSections {
		a, err := c.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, k)
		if err != nil && !store.IsNotFound(err) {
			return err
		}
		if a != nil {
			texts[k] = a.Text
		}
	}
	combined := domain.NewArtifact(domain.KindCombinedReport, ref.Fingerprint,
		pipeline.CombinedReport(ref.Name, texts), c.now())
	return c.store.SaveArtifact(ctx, sessionID, combined)
}
