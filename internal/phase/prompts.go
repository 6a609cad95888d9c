package phase

import (
	"fmt"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
)

// Sentinels stand in for a report the model did not produce.
const (
	NoFunctionsReport = "[No functions report produced]"
	NoJourneyReport   = "[No journey report produced]"
)

// Sentinel returns the stand-in text for an empty report of kind k.
func Sentinel(k domain.Kind) string {
	switch k {
	case domain.KindFunctionsReport:
		return NoFunctionsReport
	case domain.KindJourneyReport:
		return NoJourneyReport
	}
	return ""
}

// ExemplarDiagram is the few-shot sample shown to the model. It steers the
// output shape only; validity is decided by the validate package.
var ExemplarDiagram = `flowchart TD
    Start[Start]
        --> PrepareLoan[Prepare loan data]
            --> Claim[Call claim function]
            --> RedeemNote[Redeem note]
        |
        --> Repay_Loan[Prepare for repayment]
            | Check if active
                --> ForceRepay[Force repay]
        |
        | CalculateInterest[Calculate prorated interest]
        | DeterminePrincipal[Calculate principal amount]
        | ValidateRepayment[Check if enough to cover interest]
            | If Not Enough--> Revert[Invalid transaction]
        |
        | DistributeFees[Fee calculation based on basis points]
        --> Repay[Lender receives payment]
    End[End of process]`

const functionsReportPrompt = `Phase 1: Generate a detailed functions report for the following smart contract code. List every function with its parameters, visibility, and any modifiers, and note potential vulnerabilities or manipulation opportunities. Return the complete report as plain text.

Smart Contract Code:
---------------------
%s
---------------------
`

const journeyReportPrompt = `Phase 2: Generate a user journey for the following smart contract code. Provide a clear, plain-text description of the sequence and flow of the contract functions. Return the journey description as plain text.

Smart Contract Code:
---------------------
%s
---------------------
`

const journeyDiagramPrompt = `Phase 3a: Based on the following user journey description, generate ONLY valid Mermaid diagram text using 'flowchart TD' that visually represents the flow. Your output MUST start with 'flowchart TD' and contain only diagram code. Do not include any extra commentary, quotes, or annotations in the node labels. Use the sample below as a guide:

Sample Diagram:
---------------------
%s
---------------------

User Journey Description:
-------------------------
%s
-------------------------
`

const callDiagramPrompt = `Phase 3b: Based on the following functions report, generate ONLY valid Mermaid diagram text using 'flowchart TD' that represents the function call graph. Your output MUST start with 'flowchart TD' and contain only diagram code. Node labels must be simple with no extra symbols, quotes, or annotations. Use proper diamond notation for conditions if needed. Use the sample below as a guide:

Sample Diagram:
---------------------
%s
---------------------

Functions Report:
-----------------
%s
-----------------
`

var builders = map[domain.Kind]func(string) string{
	domain.KindFunctionsReport: func(source string) string {
		return fmt.Sprintf(functionsReportPrompt, source)
	},
	domain.KindJourneyReport: func(source string) string {
		return fmt.Sprintf(journeyReportPrompt, source)
	},
	domain.KindJourneyDiagram: func(journeyReport string) string {
		return fmt.Sprintf(journeyDiagramPrompt, ExemplarDiagram, journeyReport)
	},
	domain.KindCallDiagram: func(functionsReport string) string {
		return fmt.Sprintf(callDiagramPrompt, ExemplarDiagram, functionsReport)
	},
}

// BuildPrompt returns the deterministic prompt for kind k over input.
// Reports take the contract source; diagrams take their upstream report.
func BuildPrompt(k domain.Kind, input string) (string, error) {
	build, ok := builders[k]
	if !ok {
		return "", fmt.Errorf("no generator for %q", k)
	}
	return build(input), nil
}
