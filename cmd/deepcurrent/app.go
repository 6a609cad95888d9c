package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/config"
	"github.com/pxng0lin/DeepCurrent/internal/gateway"
	"github.com/pxng0lin/DeepCurrent/internal/logging"
	"github.com/pxng0lin/DeepCurrent/internal/phase"
	"github.com/pxng0lin/DeepCurrent/internal/pipeline"
	"github.com/pxng0lin/DeepCurrent/internal/render"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/store/filetree"
	"github.com/pxng0lin/DeepCurrent/internal/store/sqlite"
	"github.com/pxng0lin/DeepCurrent/internal/tui"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath    string
	endpoint      string
	analysisModel string
	queryModel    string
	outputRoot    string
	verbose       bool
	pretty        bool
	prettySet     bool
	strict        bool
}

// app is the wired component graph for one command invocation.
type app struct {
	opts *rootOptions
	in   io.Reader
	out  io.Writer
	err  io.Writer

	cfg    *config.Config
	log    *zap.Logger
	render *render.Renderer

	files  *filetree.Store
	db     *sqlite.Store
	store  *store.Mirror
	gw     *gateway.Client
	gen    *phase.Generator
	opened bool

	pick func(title string, items []tui.Item, in io.Reader, out io.Writer) (tui.Item, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{opts: &rootOptions{}, in: in, out: out, err: errOut, pick: tui.Pick}
}

// configure resolves config, logger and renderer. Flags win over the
// config file and environment.
func (a *app) configure() error {
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return err
	}
	if a.opts.endpoint != "" {
		cfg.Endpoint = a.opts.endpoint
	}
	if a.opts.analysisModel != "" {
		cfg.AnalysisModel = a.opts.analysisModel
	}
	if a.opts.queryModel != "" {
		cfg.QueryModel = a.opts.queryModel
	}
	if a.opts.outputRoot != "" {
		cfg.OutputRoot = a.opts.outputRoot
	}
	if a.opts.strict {
		cfg.StrictValidation = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg

	log, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Verbose: a.opts.verbose,
	})
	if err != nil {
		return err
	}
	a.log = log

	pretty := a.opts.pretty
	if !a.opts.prettySet {
		f, ok := a.out.(*os.File)
		pretty = ok && render.IsTerminal(f)
	}
	a.render = render.New(pretty)
	return nil
}

// databasePath places a relative database path under the output root.
func (a *app) databasePath() string {
	if filepath.IsAbs(a.cfg.Database) {
		return a.cfg.Database
	}
	return filepath.Join(a.cfg.OutputRoot, a.cfg.Database)
}

// open builds the stores and model components. Schema migration runs here,
// before any session work.
func (a *app) open(ctx context.Context) error {
	if a.opened {
		return nil
	}
	files, err := filetree.Open(a.cfg.OutputRoot, filetree.WithLogger(a.log))
	if err != nil {
		return err
	}
	db, err := sqlite.Open(ctx, a.databasePath(), sqlite.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.files = files
	a.db = db
	a.store = store.NewMirror(files, db)

	a.gw = gateway.New(a.cfg.Endpoint,
		gateway.WithMaxTokens(a.cfg.MaxTokens),
		gateway.WithTemperature(a.cfg.Temperature),
		gateway.WithLogger(a.log),
	)
	gen, err := phase.New(a.gw, a.cfg.AnalysisModel,
		phase.WithValidator(validate.For(a.cfg.StrictValidation)),
		phase.WithLogger(a.log),
	)
	if err != nil {
		return err
	}
	a.gen = gen
	a.opened = true
	a.log.Debug("components ready",
		zap.String("output_root", files.Root()),
		zap.String("database", db.Path()),
		zap.String("endpoint", a.gw.Endpoint()),
		zap.String("analysis_model", a.cfg.AnalysisModel),
		zap.String("query_model", a.cfg.QueryModel),
	)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	a.opened = false
	return errors.Join(errs...)
}

func (a *app) orchestrator(opts ...pipeline.Option) *pipeline.Orchestrator {
	opts = append([]pipeline.Option{
		pipeline.WithLogger(a.log),
		pipeline.WithPattern(a.cfg.ContractPattern),
	}, opts...)
	return pipeline.New(a.gen, a.store, a.files, opts...)
}

func (a *app) controller(policy repair.Policy) (*repair.Controller, error) {
	return repair.New(a.gen, a.gw, a.cfg.QueryModel, a.store,
		repair.WithPolicy(policy),
		repair.WithCatalog(a.files),
		repair.WithRecorder(a.db),
		repair.WithLogger(a.log),
	)
}

func (a *app) println(s string) {
	fmt.Fprintln(a.out, s)
}

func (a *app) print(s string) {
	fmt.Fprint(a.out, s)
}
