// Package phase turns an input string into one pipeline artifact by
// prompting the analysis model.
package phase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/gateway"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// ErrNoModel is returned when a generator is built without a model.
var ErrNoModel = errors.New("analysis model is required")

// Output is the result of one phase.
type Output struct {
	Kind domain.Kind
	Text string
	// Substituted is set when Text is a sentinel or the placeholder diagram.
	Substituted bool
	// Raw is the model response before validation; empty on gateway failure.
	Raw    string
	Reason validate.Reason
}

// Generator runs the four generation phases against one model.
type Generator struct {
	gw        gateway.Invoker
	model     string
	validator validate.Validator
	log       *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithValidator replaces the diagram validator.
func WithValidator(v validate.Validator) Option {
	return func(g *Generator) {
		if v != nil {
			g.validator = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.log = logging.Component(l, "phase") }
}

// New creates a Generator that prompts model through gw.
func New(gw gateway.Invoker, model string, opts ...Option) (*Generator, error) {
	if strings.TrimSpace(model) == "" {
		return nil, ErrNoModel
	}
	g := &Generator{
		gw:        gw,
		model:     model,
		validator: validate.Heuristic{},
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Model returns the analysis model identifier.
func (g *Generator) Model() string { return g.model }

// Validator returns the diagram validator in use.
func (g *Generator) Validator() validate.Validator { return g.validator }

// FunctionsReport generates the functions report from contract source.
func (g *Generator) FunctionsReport(ctx context.Context, source string) Output {
	return g.run(ctx, domain.KindFunctionsReport, builders[domain.KindFunctionsReport](source))
}

// JourneyReport generates the user journey report from contract source.
func (g *Generator) JourneyReport(ctx context.Context, source string) Output {
	return g.run(ctx, domain.KindJourneyReport, builders[domain.KindJourneyReport](source))
}

// JourneyDiagram generates the journey diagram from the journey report.
func (g *Generator) JourneyDiagram(ctx context.Context, journeyReport string) Output {
	return g.run(ctx, domain.KindJourneyDiagram, builders[domain.KindJourneyDiagram](journeyReport))
}

// CallDiagram generates the call diagram from the functions report.
func (g *Generator) CallDiagram(ctx context.Context, functionsReport string) Output {
	return g.run(ctx, domain.KindCallDiagram, builders[domain.KindCallDiagram](functionsReport))
}

// Generate runs the phase for kind k over input. Reports fall
// back to their sentinel and diagrams to the placeholder, so the returned
// Output always carries persistable text.
func (g *Generator) Generate(ctx context.Context, k domain.Kind, input string) (Output, error) {
	prompt, err := BuildPrompt(k, input)
	if err != nil {
		return Output{Kind: k}, err
	}
	return g.run(ctx, k, prompt), nil
}

func (g *Generator) run(ctx context.Context, k domain.Kind, prompt string) Output {
	log := g.log.With(zap.String("kind", string(k)), zap.String("model", g.model))
	start := time.Now()
	raw := g.gw.Invoke(ctx, prompt, g.model)
	out := Output{Kind: k, Raw: raw}

	if k.IsDiagram() {
		text, reason := g.validator.Check(raw)
		out.Reason = reason
		if reason == validate.ReasonOK {
			out.Text = text
		} else {
			out.Text = validate.PlaceholderDiagram
			out.Substituted = true
			log.Info("no valid diagram generated, using placeholder", zap.String("reason", string(reason)))
		}
	} else {
		out.Text = strings.TrimSpace(raw)
		if out.Text == "" {
			out.Text = Sentinel(k)
			out.Substituted = true
			out.Reason = validate.ReasonEmpty
			log.Info("no report generated, using sentinel")
		} else {
			out.Reason = validate.ReasonOK
		}
	}

	logging.Timed(log, "phase complete", start, zap.Bool("substituted", out.Substituted))
	return out
}
