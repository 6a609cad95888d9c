package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/gateway"
	"github.com/pxng0lin/DeepCurrent/internal/gateway/gatewaytest"
	"github.com/pxng0lin/DeepCurrent/internal/phase"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/store/filetree"
	"github.com/pxng0lin/DeepCurrent/internal/store/sqlite"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

const sampleContract = "contract C { function f() public {} }"

var clock = time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)

// byPhase answers each prompt according to its leading "Phase N" marker.
func byPhase(replies map[string]string) *gatewaytest.Fake {
	return gatewaytest.Func(func(prompt, _ string) string {
		for prefix, reply := range replies {
			if strings.HasPrefix(prompt, prefix) {
				return reply
			}
		}
		return ""
	})
}

type fixture struct {
	files *filetree.Store
	db    *sqlite.Store
	orch  *Orchestrator
	sess  *domain.Session
}

func newFixture(t *testing.T, gw gateway.Invoker, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	files, err := filetree.Open(filepath.Join(dir, "out"))
	require.NoError(t, err)
	db, err := sqlite.Open(context.Background(), filepath.Join(dir, "analysis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gen, err := phase.New(gw, "deepseek-r1")
	require.NoError(t, err)
	opts = append([]Option{WithClock(func() time.Time { return clock })}, opts...)
	orch := New(gen, store.NewMirror(files, db), files, opts...)

	sess, err := files.CreateSession(context.Background(), clock)
	require.NoError(t, err)
	return &fixture{files: files, db: db, orch: orch, sess: sess}
}

func (f *fixture) load(t *testing.T, fp string, kind domain.Kind) string {
	t.Helper()
	a, err := f.files.LoadArtifact(context.Background(), f.sess.ID, fp, kind)
	require.NoError(t, err, kind)
	return a.Text
}

// --- Run Tests ---

func TestRunSampleContract(t *testing.T) {
	fake := byPhase(map[string]string{
		"Phase 1:":  "f(): public, no modifiers",
		"Phase 2:":  "The user calls f.",
		"Phase 3a:": "flowchart TD\n    U[User] --> F[f]",
		"Phase 3b:": "Sure! Here is the call graph.",
	})
	fx := newFixture(t, fake)
	c := domain.NewContract("/contracts/C.sol", sampleContract)

	res := fx.orch.Run(context.Background(), fx.sess.ID, c)

	require.NoError(t, res.Err())
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "f(): public, no modifiers", res.Text(domain.KindFunctionsReport))
	assert.Equal(t, "The user calls f.", res.Text(domain.KindJourneyReport))
	assert.Equal(t, "flowchart TD\n    U[User] --> F[f]", res.Text(domain.KindJourneyDiagram))
	assert.Equal(t, validate.PlaceholderDiagram, res.Text(domain.KindCallDiagram))
	assert.Equal(t, []domain.Kind{domain.KindCallDiagram}, res.Substituted)

	for _, k := range append(append([]domain.Kind{}, domain.PhaseKinds...), domain.KindCombinedReport) {
		assert.Equal(t, res.Text(k), fx.load(t, c.Fingerprint, k), k)
	}
	assert.Equal(t, sampleContract, fx.load(t, c.Fingerprint, domain.KindSource))
	assert.Equal(t,
		"# Preliminary Analysis Report for C\n\n## Functions Report\n\nf(): public, no modifiers\n",
		fx.load(t, c.Fingerprint, domain.KindPreliminaryReport))

	combined := fx.load(t, c.Fingerprint, domain.KindCombinedReport)
	assert.True(t, strings.HasPrefix(combined, "# Final Analysis Report for C\n"))
	assert.Contains(t, combined, "## Function Call Diagram (Mermaid)\n\n"+validate.PlaceholderDiagram)

	rec, err := fx.db.Get(context.Background(), c.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, res.Text(domain.KindJourneyDiagram), rec.JourneyDiagram)
	assert.Equal(t, combined, rec.CombinedReport)
	assert.Equal(t, "C.sol", rec.Filename)
}

func TestRunPromptChaining(t *testing.T) {
	fake := byPhase(map[string]string{
		"Phase 1:":  "FUNCTIONS-OUT",
		"Phase 2:":  "JOURNEY-OUT",
		"Phase 3a:": "flowchart TD\n A-->B",
		"Phase 3b:": "flowchart TD\n C-->D",
	})
	fx := newFixture(t, fake)

	fx.orch.Run(context.Background(), fx.sess.ID, domain.NewContract("/contracts/C.sol", sampleContract))

	calls := fake.Calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[2].Prompt, "JOURNEY-OUT")
	assert.NotContains(t, calls[2].Prompt, "FUNCTIONS-OUT")
	assert.Contains(t, calls[3].Prompt, "FUNCTIONS-OUT")
	assert.NotContains(t, calls[3].Prompt, "JOURNEY-OUT")
	assert.NotContains(t, calls[3].Prompt, sampleContract)
}

func TestRunAllRequestsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	fx := newFixture(t, gateway.New(server.URL))
	c := domain.NewContract("/contracts/C.sol", sampleContract)

	res := fx.orch.Run(context.Background(), fx.sess.ID, c)

	want := map[domain.Kind]string{
		domain.KindFunctionsReport: "[No functions report produced]",
		domain.KindJourneyReport:   "[No journey report produced]",
		domain.KindJourneyDiagram:  validate.PlaceholderDiagram,
		domain.KindCallDiagram:     validate.PlaceholderDiagram,
	}
	got := map[domain.Kind]string{}
	for _, k := range domain.PhaseKinds {
		got[k] = fx.load(t, c.Fingerprint, k)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("persisted artifacts (-want +got):\n%s", diff)
	}
	assert.Len(t, res.Substituted, 4)
	assert.Equal(t, CombinedReport("C", want), fx.load(t, c.Fingerprint, domain.KindCombinedReport))
}

func TestRunEmptySource(t *testing.T) {
	for name, source := range map[string]string{"empty": "", "whitespace": "\n  \n"} {
		t.Run(name, func(t *testing.T) {
			fx := newFixture(t, byPhase(nil))
			c := domain.NewContract("/contracts/E.sol", source)

			res := fx.orch.Run(context.Background(), fx.sess.ID, c)

			require.NoError(t, res.Err())
			texts := map[domain.Kind]string{}
			for _, k := range domain.PhaseKinds {
				texts[k] = fx.load(t, c.Fingerprint, k)
				assert.NotEmpty(t, texts[k], k)
			}
			assert.Equal(t, validate.PlaceholderDiagram, texts[domain.KindJourneyDiagram])
			assert.Equal(t, validate.PlaceholderDiagram, texts[domain.KindCallDiagram])
			combined := fx.load(t, c.Fingerprint, domain.KindCombinedReport)
			assert.Equal(t, CombinedReport("E", texts), combined)
			for _, text := range texts {
				assert.Contains(t, combined, text)
			}
		})
	}
}

func TestAnalyzeDirectoryWhitespaceContract(t *testing.T) {
	dir := writeContracts(t, map[string]string{
		"A.sol": "\n  \n",
		"B.sol": sampleContract,
	})
	fx := newFixture(t, byPhase(nil))

	batch, err := fx.orch.AnalyzeDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Empty(t, batch.Skipped)
	require.Len(t, batch.Results, 2)
	a := batch.Results[0]
	require.Equal(t, "A.sol", a.Contract.Filename)
	for _, k := range append(append([]domain.Kind{}, domain.PhaseKinds...), domain.KindCombinedReport) {
		got, err := fx.files.LoadArtifact(context.Background(), batch.Session.ID, a.Contract.Fingerprint, k)
		require.NoError(t, err, k)
		assert.NotEmpty(t, got.Text, k)
	}
}

func TestRunPersistsEachStageBeforeTheNext(t *testing.T) {
	var fx *fixture
	c := domain.NewContract("/contracts/C.sol", sampleContract)
	seen := map[Stage][]domain.Kind{}
	observer := func(_ *domain.Contract, s Stage) {
		for _, k := range domain.PhaseKinds {
			if _, err := fx.files.LoadArtifact(context.Background(), fx.sess.ID, c.Fingerprint, k); err == nil {
				seen[s] = append(seen[s], k)
			}
		}
	}
	fx = newFixture(t, gatewaytest.New("flowchart TD\n A-->B"), WithObserver(observer))

	fx.orch.Run(context.Background(), fx.sess.ID, c)

	assert.Empty(t, seen[StageFunctionsReport])
	assert.Equal(t, []domain.Kind{domain.KindFunctionsReport}, seen[StageJourneyReport])
	assert.Equal(t, []domain.Kind{domain.KindFunctionsReport, domain.KindJourneyReport}, seen[StageJourneyDiagram])
	assert.Len(t, seen[StageCallDiagram], 3)
	assert.Len(t, seen[StageDone], 4)
}

type brokenStore struct{ store.ArtifactStore }

func (brokenStore) SaveContract(context.Context, string, *domain.Contract) error {
	return errors.New("read-only filesystem")
}

func (brokenStore) SaveArtifact(context.Context, string, *domain.Artifact) error {
	return errors.New("read-only filesystem")
}

func TestRunContinuesPastPersistErrors(t *testing.T) {
	gen, err := phase.New(gatewaytest.New("flowchart TD\n A-->B"), "deepseek-r1")
	require.NoError(t, err)
	orch := New(gen, brokenStore{}, nil)

	res := orch.Run(context.Background(), "analysis_20250314_150926", domain.NewContract("/c/C.sol", sampleContract))

	assert.Len(t, res.PersistErrors, 7, "contract, four phases, preliminary and combined")
	assert.ErrorContains(t, res.Err(), "read-only filesystem")
	assert.Len(t, res.Artifacts, 5)
}

// --- Directory Tests ---

func writeContracts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	return dir
}

func TestAnalyzeDirectory(t *testing.T) {
	dir := writeContracts(t, map[string]string{
		"A.sol":     "contract A {}",
		"B.sol":     "contract B {}",
		"Blank.sol": "\n  \n",
		"Empty.sol": "",
		"README.md": "# docs",
		"lib/L.sol": "library L {}",
	})
	fx := newFixture(t, gatewaytest.New("flowchart TD\n A-->B"))

	batch, err := fx.orch.AnalyzeDirectory(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, batch.Results, 3)
	assert.Equal(t, "A.sol", batch.Results[0].Contract.Filename)
	assert.Equal(t, "B.sol", batch.Results[1].Contract.Filename)
	assert.Equal(t, "Blank.sol", batch.Results[2].Contract.Filename, "whitespace-only sources are still analysed")
	require.Len(t, batch.Skipped, 1)
	assert.Equal(t, "Empty.sol", filepath.Base(batch.Skipped[0].Path))
	assert.Equal(t, "empty file", batch.Skipped[0].Reason)
	assert.Empty(t, batch.Failed)

	refs, err := fx.files.ListContracts(context.Background(), batch.Session.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 3)
	assert.NotEqual(t, fx.sess.ID, batch.Session.ID, "a new session per directory run")
}

func TestAnalyzeDirectoryRecursivePattern(t *testing.T) {
	dir := writeContracts(t, map[string]string{
		"A.sol":     "contract A {}",
		"lib/L.sol": "library L {}",
	})
	fx := newFixture(t, gatewaytest.New(""), WithPattern("**/*.sol"))

	batch, err := fx.orch.AnalyzeDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Len(t, batch.Results, 2)
}

func TestAnalyzeDirectoryRecoversPanics(t *testing.T) {
	dir := writeContracts(t, map[string]string{
		"A.sol": "contract A { boom }",
		"B.sol": "contract B {}",
	})
	fake := gatewaytest.Func(func(prompt, _ string) string {
		if strings.Contains(prompt, "boom") {
			panic("model adapter crashed")
		}
		return "ok"
	})
	fx := newFixture(t, fake)

	batch, err := fx.orch.AnalyzeDirectory(context.Background(), dir)

	require.NoError(t, err)
	require.Len(t, batch.Failed, 1)
	assert.Contains(t, batch.Failed[0].Error(), "A.sol")
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "B.sol", batch.Results[0].Contract.Filename)
}

func TestAnalyzeDirectoryErrors(t *testing.T) {
	fx := newFixture(t, gatewaytest.New(""))

	_, err := fx.orch.AnalyzeDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = fx.orch.AnalyzeDirectory(context.Background(), writeContracts(t, map[string]string{"x.txt": "x"}))
	assert.ErrorContains(t, err, "no files matching")
}

// --- Report Tests ---

func TestCombinedReportLayout(t *testing.T) {
	got := CombinedReport("Token", map[domain.Kind]string{
		domain.KindFunctionsReport: "FR",
		domain.KindJourneyReport:   "JR",
		domain.KindJourneyDiagram:  "JD",
		domain.KindCallDiagram:     "CD",
	})

	want := "# Final Analysis Report for Token\n\n" +
		"## Functions Report\n\nFR\n\n" +
		"## Journey Report\n\nJR\n\n" +
		"## User Journey Diagram (Mermaid)\n\nJD\n\n" +
		"## Function Call Diagram (Mermaid)\n\nCD\n"
	assert.Equal(t, want, got)
}

// --- Discovery Tests ---

func TestDiscover(t *testing.T) {
	dir := writeContracts(t, map[string]string{
		"b.sol":        "x",
		"a.sol":        "x",
		"nested/c.sol": "x",
		"nested/d.vy":  "x",
	})

	top, err := Discover(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.sol"), filepath.Join(dir, "b.sol")}, top)

	all, err := Discover(dir, "**/*.sol")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = Discover(dir, "[")
	assert.Error(t, err)
}
