package pipeline

import (
	"fmt"
	"strings"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// CombinedSections are the sections of the final report, in order.
var CombinedSections = []domain.Kind{
	domain.KindFunctionsReport,
	domain.KindJourneyReport,
	domain.KindJourneyDiagram,
	domain.KindCallDiagram,
}

// sectionHeaders are the fixed headings used in the final report.
var sectionHeaders = map[domain.Kind]string{
	domain.KindFunctionsReport: "Functions Report",
	domain.KindJourneyReport:   "Journey Report",
	domain.KindJourneyDiagram:  "User Journey Diagram (Mermaid)",
	domain.KindCallDiagram:     "Function Call Diagram (Mermaid)",
}

// CombinedReport concatenates the four phase outputs under fixed headers.
// texts is keyed by kind; absent kinds render as empty sections.
func CombinedReport(base string, texts map[domain.Kind]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Final Analysis Report for %s\n", base)
	for _, k := range CombinedSections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", sectionHeaders[k], texts[k])
	}
	return b.String()
}

// PreliminaryReport wraps the functions report written right after phase 1.
func PreliminaryReport(base, functionsReport string) string {
	return fmt.Sprintf("# Preliminary Analysis Report for %s\n\n## Functions Report\n\n%s\n", base, functionsReport)
}
