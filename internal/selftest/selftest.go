// Package selftest provides runtime environment validation and self-diagnostics.
package selftest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/pxng0lin/DeepCurrent/internal/config"
	"github.com/pxng0lin/DeepCurrent/internal/gateway"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// Environment describes the runtime environment.
type Environment struct {
	HasTTY            bool
	Endpoint          string
	EndpointReachable bool
	EndpointStatus    int
	OutputRoot        string
	OutputWritable    bool
	StoreOK           bool
	AnalysisModel     string
	QueryModel        string
	Warnings          []string
	Errors            []string
}

// Options configures Check.
type Options struct {
	Config  *config.Config
	Store   store.Store        // may be nil to skip the store check
	Client  gateway.HTTPClient // defaults to an http.Client with Timeout
	Timeout time.Duration      // endpoint probe timeout, default 3s
	Stdin   *os.File           // TTY probe, default os.Stdin
}

// Check performs a complete environment validation.
func Check(ctx context.Context, opts Options) *Environment {
	cfg := opts.Config
	env := &Environment{
		Endpoint:      cfg.Endpoint,
		OutputRoot:    cfg.OutputRoot,
		AnalysisModel: cfg.AnalysisModel,
		QueryModel:    cfg.QueryModel,
	}

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	env.HasTTY = term.IsTerminal(int(stdin.Fd()))
	if !env.HasTTY {
		env.Warnings = append(env.Warnings, "No terminal on stdin: repair will not prompt, browse is unavailable")
	}

	env.checkModels()
	env.checkOutputRoot()
	env.checkStore(ctx, opts.Store)
	env.checkEndpoint(ctx, opts)
	return env
}

func (e *Environment) checkModels() {
	for _, m := range []struct{ role, name string }{
		{"analysis", e.AnalysisModel},
		{"query", e.QueryModel},
	} {
		if !config.IsKnownModel(m.name) {
			e.Warnings = append(e.Warnings, fmt.Sprintf("Custom %s model %q", m.role, m.name))
		}
	}
}

func (e *Environment) checkOutputRoot() {
	if err := config.EnsureDir(e.OutputRoot); err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("Output root %s: %v", e.OutputRoot, err))
		return
	}
	f, err := os.CreateTemp(e.OutputRoot, ".selftest-*")
	if err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("Output root %s is not writable: %v", e.OutputRoot, err))
		return
	}
	f.Close()
	os.Remove(f.Name())
	e.OutputWritable = true
}

func (e *Environment) checkStore(ctx context.Context, s store.Store) {
	if s == nil {
		return
	}
	if err := s.Ping(ctx); err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("Store: %v", err))
		return
	}
	e.StoreOK = true
}

// checkEndpoint treats any HTTP response as reachable; only a transport
// failure is an error. A 5xx answer is a warning.
func (e *Environment) checkEndpoint(ctx context.Context, opts Options) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.Endpoint, nil)
	if err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("Endpoint %s: %v", e.Endpoint, err))
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("Endpoint %s unreachable: %v", e.Endpoint, err))
		return
	}
	resp.Body.Close()
	e.EndpointReachable = true
	e.EndpointStatus = resp.StatusCode
	if resp.StatusCode >= 500 {
		e.Warnings = append(e.Warnings, fmt.Sprintf("Endpoint answered %s", resp.Status))
	}
}

// IsHealthy returns true if the environment can run an analysis.
func (e *Environment) IsHealthy() bool {
	return len(e.Errors) == 0
}

// CanPrompt returns true if interactive confirmation is possible.
func (e *Environment) CanPrompt() bool {
	return e.HasTTY
}

func okOr(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// Summary returns a human-readable summary.
func (e *Environment) Summary() string {
	var sb strings.Builder

	sb.WriteString("DEEPCURRENT ENVIRONMENT CHECK\n")
	sb.WriteString(strings.Repeat("─", 40) + "\n")

	sb.WriteString(fmt.Sprintf("TTY:          %s\n", okOr(e.HasTTY, "Yes (interactive repair and browse)", "No (non-interactive mode)")))
	endpoint := "UNREACHABLE"
	if e.EndpointReachable {
		endpoint = fmt.Sprintf("OK (HTTP %d)", e.EndpointStatus)
	}
	sb.WriteString(fmt.Sprintf("Endpoint:     %s %s\n", e.Endpoint, endpoint))
	sb.WriteString(fmt.Sprintf("Output root:  %s %s\n", e.OutputRoot, okOr(e.OutputWritable, "OK", "NOT WRITABLE")))
	sb.WriteString(fmt.Sprintf("Store:        %s\n", okOr(e.StoreOK, "OK", "unavailable")))
	sb.WriteString(fmt.Sprintf("Models:       analysis=%s query=%s\n", e.AnalysisModel, e.QueryModel))

	if len(e.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range e.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠ %s\n", w))
		}
	}

	if len(e.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		for _, err := range e.Errors {
			sb.WriteString(fmt.Sprintf("  ✗ %s\n", err))
		}
	}

	sb.WriteString("\n")
	if e.IsHealthy() {
		sb.WriteString("Status: HEALTHY\n")
	} else {
		sb.WriteString("Status: UNHEALTHY - fix errors above\n")
	}

	return sb.String()
}

// QuickCheck returns a one-line status suitable for non-verbose output.
func (e *Environment) QuickCheck() string {
	if !e.IsHealthy() {
		return fmt.Sprintf("Environment unhealthy: %s", strings.Join(e.Errors, "; "))
	}
	mode := "non-interactive"
	if e.HasTTY {
		mode = "interactive"
	}
	return fmt.Sprintf("endpoint:up mode:%s analysis:%s query:%s", mode, e.AnalysisModel, e.QueryModel)
}
