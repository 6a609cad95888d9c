// Package validate decides whether a generated diagram payload is usable.
//
// The check is a heuristic: a payload is accepted when it opens with a known
// Mermaid root token and is not the placeholder diagram. No diagram grammar is
// parsed; a grammar-aware Validator can replace these without touching callers.
package validate

import "strings"

// PlaceholderMarker is the sentinel carried by every placeholder diagram.
const PlaceholderMarker = "Default Diagram"

// PlaceholderDiagram is substituted when a generated diagram is unusable.
const PlaceholderDiagram = "flowchart TD\n    A[" + PlaceholderMarker + "]\n"

// DiagramRoots are the leading tokens accepted as a diagram dialect.
var DiagramRoots = []string{"flowchart TD", "sequenceDiagram"}

// Reason explains a validity decision.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonEmpty       Reason = "empty"
	ReasonMissingRoot Reason = "missing_root"
	ReasonPlaceholder Reason = "placeholder"
	ReasonMissing     Reason = "missing" // payload could not be loaded
)

// Validator checks a diagram payload and returns the text to persist.
type Validator interface {
	// Check returns the normalized payload and the decision for it.
	Check(text string) (string, Reason)
}

// IsValidDiagram reports whether text is a usable diagram.
func IsValidDiagram(text string) bool {
	return Diagnose(text) == ReasonOK
}

// Diagnose returns why text is, or is not, a usable diagram.
func Diagnose(text string) Reason {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return ReasonEmpty
	}
	if strings.Contains(stripped, PlaceholderMarker) {
		return ReasonPlaceholder
	}
	for _, root := range DiagramRoots {
		if strings.HasPrefix(stripped, root) {
			return ReasonOK
		}
	}
	return ReasonMissingRoot
}

// IsValidDiagramStrict is IsValidDiagram applied to the fenced body of text.
func IsValidDiagramStrict(text string) bool {
	return IsValidDiagram(ExtractFenced(text))
}

const fence = "```"

// ExtractFenced returns the body of the first fenced code block in text,
// or the trimmed text when it has no fence. The info string after the
// opening fence (for example "mermaid") is dropped.
//
// Extraction is idempotent: the result never contains a fence, so
// ExtractFenced(ExtractFenced(s)) == ExtractFenced(s).
func ExtractFenced(text string) string {
	start := strings.Index(text, fence)
	if start < 0 {
		return strings.TrimSpace(text)
	}
	body := text[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], fence) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// Heuristic is the leading-token check applied to the payload as generated.
type Heuristic struct{}

// Check implements Validator.
func (Heuristic) Check(text string) (string, Reason) {
	return text, Diagnose(text)
}

// Strict unwraps a fenced code block before the leading-token check and
// persists the unwrapped body.
type Strict struct{}

// Check implements Validator.
func (Strict) Check(text string) (string, Reason) {
	body := ExtractFenced(text)
	return body, Diagnose(body)
}

// For returns the Strict validator when strict is set, Heuristic otherwise.
func For(strict bool) Validator {
	if strict {
		return Strict{}
	}
	return Heuristic{}
}
