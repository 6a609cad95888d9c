package render

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/pipeline"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
	"github.com/pxng0lin/DeepCurrent/internal/store/sqlite"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

func init() {
	color.NoColor = true
}

var when = time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)

// --- Helper Tests ---

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"abcdef", 2, "ab"},
		{"ééééé", 4, "é..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.max), tt.in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
}

func TestOutcomeIcon(t *testing.T) {
	assert.Equal(t, "✓", OutcomeIcon(domain.OutcomeValid))
	assert.Equal(t, "✗", OutcomeIcon(domain.OutcomeFailed))
	assert.Equal(t, "•", OutcomeIcon("unknown"))
}

// --- Renderer Tests ---

func TestSessions(t *testing.T) {
	r := New(false)
	assert.Equal(t, "No analysis sessions found", r.Sessions(nil))

	out := r.Sessions([]*domain.Session{{ID: "analysis_20250314_150926", CreatedAt: when}})
	assert.Contains(t, out, "analysis_20250314_150926\t2025-03-14 15:09:26")
}

func TestContracts(t *testing.T) {
	r := New(false)
	refs := []domain.ContractRef{{Fingerprint: strings.Repeat("ab", 32), Name: "Vault", Filename: "Vault.sol"}}

	out := r.Contracts("analysis_20250314_150926", refs)

	assert.Contains(t, out, "abababababab\tVault\tVault.sol")
	assert.Equal(t, "No contracts in s", r.Contracts("s", nil))

	pretty := New(true).Contracts("analysis_20250314_150926", refs)
	assert.Contains(t, pretty, "CONTRACT")
	assert.Contains(t, pretty, "Vault.sol")
	assert.Contains(t, pretty, "abababababab")
}

func TestStatus(t *testing.T) {
	statuses := []repair.ArtifactStatus{
		{Kind: domain.KindFunctionsReport, State: repair.StatePresent, Bytes: 2048, UpdatedAt: when},
		{Kind: domain.KindCallDiagram, State: repair.StateInvalid, Reason: validate.ReasonPlaceholder},
		{Kind: domain.KindJourneyDiagram, State: repair.StateError, Err: errors.New("disk gone")},
	}
	ref := domain.ContractRef{Name: "Vault", Fingerprint: "abc"}

	plain := New(false).Status(ref, statuses)
	assert.Contains(t, plain, "functions_report\tpresent\t2.0KB  2025-03-14 15:09:26")
	assert.Contains(t, plain, "call_diagram\tinvalid\tplaceholder")
	assert.Contains(t, plain, "journey_diagram\terror\tdisk gone")

	pretty := New(true).Status(ref, statuses)
	assert.Contains(t, pretty, "Function Call Diagram")
	assert.Contains(t, pretty, "deepcurrent repair")
}

func TestRepairReport(t *testing.T) {
	rep := &repair.Report{
		Contract: domain.ContractRef{Name: "Vault"},
		Steps: []repair.Step{
			{Kind: domain.KindJourneyDiagram, Reason: validate.ReasonOK, Outcome: domain.OutcomeValid},
			{Kind: domain.KindCallDiagram, Reason: validate.ReasonMissingRoot, Outcome: domain.OutcomeRepaired},
		},
		CombinedRebuilt: true,
		Errors:          []error{errors.New("sqlite: locked")},
	}

	out := New(false).RepairReport(rep)

	assert.Contains(t, out, "call_diagram\trepaired\tmissing_root\t")
	assert.Contains(t, out, "final analysis report rebuilt")
	assert.Contains(t, out, "warning: sqlite: locked")
}

func TestAttempts(t *testing.T) {
	r := New(true)
	assert.Equal(t, "No repair attempts recorded", r.Attempts(nil))

	out := r.Attempts([]*domain.RepairAttempt{{
		ID: "01H", SessionID: "analysis_20250314_150926", Fingerprint: "abc",
		Kind: domain.KindCallDiagram, Outcome: domain.OutcomeMissingDependency,
		Detail: "Functions Report not found", AttemptedAt: when,
	}})
	assert.Contains(t, out, "! 2025-03-14 15:09:26 abc call_diagram")
	assert.Contains(t, out, "└─ Functions Report not found")
}

func TestRecords(t *testing.T) {
	out := New(false).Records([]*sqlite.Record{{
		Fingerprint: "abc", Filename: "Vault.sol", SessionID: "analysis_20250314_150926",
		FunctionsReport: "f", CallDiagram: "flowchart TD", AnalysedAt: when,
	}})
	assert.Contains(t, out, "abc\tVault.sol\t2025-03-14 15:09:26\tanalysis_20250314_150926\tfunctions_report,call_diagram")
}

func TestRecordsShowsRepairTime(t *testing.T) {
	out := New(true).Records([]*sqlite.Record{{
		Fingerprint: "abc", Filename: "Vault.sol", SessionID: "analysis_20250314_150926",
		CallDiagram: "flowchart TD", AnalysedAt: when, UpdatedAt: when.Add(time.Hour),
	}})
	assert.Contains(t, out, "1/4 artifacts, updated 2025-03-14 16:09:26")
}

func TestBatch(t *testing.T) {
	b := &pipeline.Batch{
		Session: &domain.Session{ID: "analysis_20250314_150926"},
		Results: []*pipeline.Result{
			{Contract: domain.NewContract("/c/A.sol", "a"), Duration: 2 * time.Second},
			{Contract: domain.NewContract("/c/B.sol", "b"), Substituted: []domain.Kind{domain.KindCallDiagram}},
		},
		Skipped: []pipeline.Skipped{{Path: "/c/E.sol", Reason: "empty file"}},
	}

	out := New(false).Batch(b)

	assert.Contains(t, out, "A.sol\t2.0s\t\n")
	assert.Contains(t, out, "B.sol\t0ms\tsubstituted: call_diagram")
	assert.Contains(t, out, "warning: skipped /c/E.sol: empty file")
	assert.True(t, strings.HasSuffix(out, "2 analysed, 1 skipped, 0 failed\n"))
}

func TestMarkdown(t *testing.T) {
	assert.Equal(t, "# Title\n", New(false).Markdown("# Title\n"))

	out := New(true).Markdown("# Title\n\nsome **bold** text\n")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}

func TestArtifact(t *testing.T) {
	a := domain.NewArtifact(domain.KindCallDiagram, "abc", "flowchart TD\n    A-->B", when)

	out := New(false).Artifact(domain.ContractRef{Name: "Vault"}, a)

	require.True(t, strings.HasPrefix(out, "Vault: Function Call Diagram\n"))
	assert.Contains(t, out, "flowchart TD\n    A-->B")
}

func TestOneLiners(t *testing.T) {
	plain := New(false)
	assert.Equal(t, "saved", plain.Notice("saved"))
	assert.Equal(t, "warning: x 1", plain.Warn("x %d", 1))
	assert.Equal(t, "error: boom", plain.Fail("boom"))

	assert.Equal(t, "! x", New(true).Warn("x"))
}
