// Package pipeline runs the fixed sequence of analysis phases for each
// contract and persists every output as soon as it exists.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/phase"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// Stage names a step of a run.
type Stage string

const (
	StageStart           Stage = "start"
	StageFunctionsReport Stage = "functions_report"
	StageJourneyReport   Stage = "journey_report"
	StageJourneyDiagram  Stage = "journey_diagram"
	StageCallDiagram     Stage = "call_diagram"
	StageCombinedReport  Stage = "combined_report"
	StageDone            Stage = "done"
)

// Observer is told when a run enters a stage. It may be nil.
type Observer func(contract *domain.Contract, stage Stage)

// Result is the outcome of one contract run. Every phase kind is always
// present in Artifacts, possibly as a sentinel or placeholder.
type Result struct {
	RunID     string
	SessionID string
	Contract  *domain.Contract
	Artifacts map[domain.Kind]*domain.Artifact
	// Substituted lists the kinds whose text is a sentinel or placeholder.
	Substituted []domain.Kind
	// PersistErrors collects storage failures; the run continues past them.
	PersistErrors []error
	Duration      time.Duration
}

// Text returns the artifact text for kind, or "".
func (r *Result) Text(kind domain.Kind) string {
	if a, ok := r.Artifacts[kind]; ok {
		return a.Text
	}
	return ""
}

// Err joins the persist errors.
func (r *Result) Err() error {
	return errors.Join(r.PersistErrors...)
}

// Orchestrator drives the phase generators in order for one contract at a
// time.
type Orchestrator struct {
	gen      *phase.Generator
	store    store.ArtifactStore
	catalog  store.Catalog
	log      *zap.Logger
	now      func() time.Time
	pattern  string
	observer Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = logging.Component(l, "pipeline") }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithPattern sets the contract discovery pattern.
func WithPattern(pattern string) Option {
	return func(o *Orchestrator) {
		if pattern != "" {
			o.pattern = pattern
		}
	}
}

// WithObserver registers a stage observer.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// New creates an Orchestrator. catalog may be nil when only Run is used.
func New(gen *phase.Generator, st store.ArtifactStore, catalog store.Catalog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gen:     gen,
		store:   st,
		catalog: catalog,
		log:     zap.NewNop(),
		now:     time.Now,
		pattern: DefaultPattern,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) enter(c *domain.Contract, s Stage) {
	o.log.Debug("stage", zap.String("contract", c.Filename), zap.String("stage", string(s)))
	if o.observer != nil {
		o.observer(c, s)
	}
}

// Run analyses one contract within sessionID:
// functions report, journey report, journey diagram, call diagram, combined
// report. Each output is persisted before the next phase starts. Gateway and
// storage failures never stop the run.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, c *domain.Contract) *Result {
	start := o.now()
	res := &Result{
		RunID:     ulid.Make().String(),
		SessionID: sessionID,
		Contract:  c,
		Artifacts: make(map[domain.Kind]*domain.Artifact, len(domain.PhaseKinds)+1),
	}
	ctx = logging.WithRequestID(ctx, res.RunID)
	log := o.log.With(
		logging.RequestField(ctx),
		zap.String("session", sessionID),
		zap.String("contract", c.Filename),
		zap.String("fingerprint", c.ShortID()),
	)

	o.enter(c, StageStart)
	if err := o.store.SaveContract(ctx, sessionID, c); err != nil {
		log.Warn("failed to persist contract", zap.Error(err))
		res.PersistErrors = append(res.PersistErrors, fmt.Errorf("contract: %w", err))
	}

	persist := func(kind domain.Kind, text string) {
		a := domain.NewArtifact(kind, c.Fingerprint, text, o.now())
		if kind != domain.KindPreliminaryReport {
			res.Artifacts[kind] = a
		}
		if err := o.store.SaveArtifact(ctx, sessionID, a); err != nil {
			log.Warn("failed to persist artifact", zap.String("kind", string(kind)), zap.Error(err))
			res.PersistErrors = append(res.PersistErrors, fmt.Errorf("%s: %w", kind, err))
		}
	}
	record := func(out phase.Output) {
		if out.Substituted {
			res.Substituted = append(res.Substituted, out.Kind)
		}
		persist(out.Kind, out.Text)
	}

	o.enter(c, StageFunctionsReport)
	functions := o.gen.FunctionsReport(ctx, c.Source)
	record(functions)
	persist(domain.KindPreliminaryReport, PreliminaryReport(c.Name, functions.Text))

	o.enter(c, StageJourneyReport)
	journey := o.gen.JourneyReport(ctx, c.Source)
	record(journey)

	o.enter(c, StageJourneyDiagram)
	record(o.gen.JourneyDiagram(ctx, journey.Text))

	o.enter(c, StageCallDiagram)
	record(o.gen.CallDiagram(ctx, functions.Text))

	o.enter(c, StageCombinedReport)
	texts := make(map[domain.Kind]string, len(CombinedSections))
	for _, k := range CombinedSections {
		texts[k] = res.Text(k)
	}
	persist(domain.KindCombinedReport, CombinedReport(c.Name, texts))

	o.enter(c, StageDone)
	res.Duration = o.now().Sub(start)
	log.Info("contract analysed",
		zap.Duration("duration", res.Duration),
		zap.Int("substituted", len(res.Substituted)),
		zap.Int("persist_errors", len(res.PersistErrors)),
	)
	return res
}

// Skipped describes an input file that was not analysed.
type Skipped struct {
	Path   string
	Reason string
}

// Batch is the outcome of analysing a directory.
type Batch struct {
	Session *domain.Session
	Results []*Result
	Skipped []Skipped
	Failed  []error
}

// AnalyzeDirectory creates a session and runs every contract under dir in
// path order. A contract that cannot be read, is empty, or panics is
// reported and its siblings still run.
func (o *Orchestrator) AnalyzeDirectory(ctx context.Context, dir string) (*Batch, error) {
	if o.catalog == nil {
		return nil, errors.New("pipeline has no session catalog")
	}
	paths, err := Discover(dir, o.pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files matching %q in %s", o.pattern, dir)
	}

	sess, err := o.catalog.CreateSession(ctx, o.now())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	batch := &Batch{Session: sess}
	recovery := logging.NewRecoveryHandler("pipeline", o.log)
	start := time.Now()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			o.log.Warn("skipping unreadable contract", zap.String("path", path), zap.Error(err))
			batch.Skipped = append(batch.Skipped, Skipped{Path: path, Reason: err.Error()})
			continue
		}
		if len(data) == 0 {
			o.log.Warn("skipping empty contract", zap.String("path", path))
			batch.Skipped = append(batch.Skipped, Skipped{Path: path, Reason: "empty file"})
			continue
		}

		c := domain.NewContract(path, string(data))
		err = recovery.WrapError(func() error {
			batch.Results = append(batch.Results, o.Run(ctx, sess.ID, c))
			return nil
		})
		if err != nil {
			batch.Failed = append(batch.Failed, fmt.Errorf("%s: %w", path, err))
		}
	}

	logging.Timed(o.log, "session complete", start,
		zap.String("session", sess.ID),
		zap.Int("contracts", len(batch.Results)),
		zap.Int("skipped", len(batch.Skipped)),
		zap.Int("failed", len(batch.Failed)),
	)
	return batch, nil
}
