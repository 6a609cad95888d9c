// Package domain defines the core entities of a DeepCurrent analysis:
// contracts, the artifacts produced for them, and the sessions that group them.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies one persisted output of the analysis pipeline.
type Kind string

const (
	KindFunctionsReport   Kind = "functions_report"
	KindJourneyReport     Kind = "journey_report"
	KindJourneyDiagram    Kind = "journey_diagram"
	KindCallDiagram       Kind = "call_diagram"
	KindCombinedReport    Kind = "analysis_report"
	KindPreliminaryReport Kind = "preliminary_report"
	KindSource            Kind = "original"
)

// kindMeta describes each kind (extend via map, not switch).
var kindMeta = map[Kind]struct {
	Title    string
	Suffix   string
	Column   string
	Diagram  bool
	Upstream Kind
}{
	KindFunctionsReport:   {"Functions Report", "_functions_report.md", "functions_report", false, ""},
	KindJourneyReport:     {"Journey Report", "_journey_report.md", "journey_report", false, ""},
	KindJourneyDiagram:    {"User Journey Diagram", "_journey_diagram.md", "journey_diagram", true, KindJourneyReport},
	KindCallDiagram:       {"Function Call Diagram", "_call_diagram.md", "call_diagram", true, KindFunctionsReport},
	KindCombinedReport:    {"Final Analysis Report", "_analysis_report.md", "combined_report", false, ""},
	KindPreliminaryReport: {"Preliminary Analysis Report", "_preliminary_report.md", "", false, ""},
	KindSource:            {"Original Source", "_original.sol", "content", false, ""},
}

// PhaseKinds are the four artifacts produced by a pipeline run, in run order.
var PhaseKinds = []Kind{
	KindFunctionsReport,
	KindJourneyReport,
	KindJourneyDiagram,
	KindCallDiagram,
}

// DiagramKinds are the kinds checked by the integrity check, in check order.
var DiagramKinds = []Kind{KindJourneyDiagram, KindCallDiagram}

// AllKinds lists every kind that has a file representation.
var AllKinds = []Kind{
	KindSource,
	KindFunctionsReport,
	KindPreliminaryReport,
	KindJourneyReport,
	KindJourneyDiagram,
	KindCallDiagram,
	KindCombinedReport,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindMeta[k]
	return ok
}

// Title returns the human-readable section title.
func (k Kind) Title() string {
	if m, ok := kindMeta[k]; ok {
		return m.Title
	}
	return string(k)
}

// Suffix returns the file-name suffix appended to a contract base name.
func (k Kind) Suffix() string {
	return kindMeta[k].Suffix
}

// Column returns the structured-store column holding this kind,
// or "" when the kind is only kept as a file.
func (k Kind) Column() string {
	return kindMeta[k].Column
}

// IsDiagram reports whether payloads of this kind carry a diagram contract.
func (k Kind) IsDiagram() bool {
	return kindMeta[k].Diagram
}

// IsReport reports whether k is one of the two free-text phase reports.
func (k Kind) IsReport() bool {
	return k == KindFunctionsReport || k == KindJourneyReport
}

// Upstream returns the report a diagram is derived from.
// A CallDiagram always comes from the FunctionsReport and a JourneyDiagram
// from the JourneyReport; other kinds have no upstream.
func (k Kind) Upstream() (Kind, bool) {
	u := kindMeta[k].Upstream
	return u, u != ""
}

// FileName returns the artifact file name for a contract base name.
func (k Kind) FileName(base string) string {
	return base + k.Suffix()
}

// ParseFileName recovers the contract base name and kind from an artifact
// file name. It is the inverse of Kind.FileName: the longest matching suffix
// wins and the base must be non-empty.
func ParseFileName(name string) (string, Kind, bool) {
	var (
		best     Kind
		bestLen  int
		bestBase string
	)
	for k, m := range kindMeta {
		if !strings.HasSuffix(name, m.Suffix) || len(m.Suffix) <= bestLen {
			continue
		}
		base := strings.TrimSuffix(name, m.Suffix)
		if base == "" {
			continue
		}
		best, bestLen, bestBase = k, len(m.Suffix), base
	}
	if best == "" {
		return "", "", false
	}
	return bestBase, best, true
}

// kindAliases maps user-facing names to kinds.
var kindAliases = map[string]Kind{
	"functions":        KindFunctionsReport,
	"functions-report": KindFunctionsReport,
	"journey":          KindJourneyReport,
	"journey-report":   KindJourneyReport,
	"journey-diagram":  KindJourneyDiagram,
	"call-diagram":     KindCallDiagram,
	"calls":            KindCallDiagram,
	"combined":         KindCombinedReport,
	"report":           KindCombinedReport,
	"preliminary":      KindPreliminaryReport,
	"source":           KindSource,
}

// ParseKind resolves a CLI name or a raw kind value.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	if k := Kind(s); k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}

// KindNames returns the CLI names accepted by ParseKind, for help text.
func KindNames() []string {
	return []string{"functions", "journey", "journey-diagram", "call-diagram", "combined", "preliminary", "source"}
}

// Artifact is one persisted textual output for a contract.
// A later repair replaces the payload; there is no version chain.
type Artifact struct {
	Kind        Kind      `json:"kind" yaml:"kind"`
	Contract    string    `json:"contract" yaml:"contract"` // producing contract fingerprint
	Text        string    `json:"text" yaml:"text"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// NewArtifact stamps a payload for a contract.
func NewArtifact(kind Kind, fingerprint, text string, at time.Time) *Artifact {
	return &Artifact{
		Kind:        kind,
		Contract:    fingerprint,
		Text:        text,
		GeneratedAt: at,
	}
}
