package repair

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/store"
)

// NotAvailable stands in for any query context piece that cannot be loaded.
const NotAvailable = "[not available]"

// querySections are the context pieces of a query prompt in order. The
// first entry is replaced by the report being asked about.
var querySections = []struct {
	Header string
	Kind   domain.Kind
}{
	{"Report Content", ""},
	{"Original Code", domain.KindSource},
	{"Journey Diagram", domain.KindJourneyDiagram},
	{"Call Diagram", domain.KindCallDiagram},
}

// BuildQueryPrompt assembles the query prompt. pieces must hold one text per
// section: report, source, journey diagram, call diagram.
func BuildQueryPrompt(pieces []string, question string) string {
	var b strings.Builder
	b.WriteString("Based on the following materials:\n")
	for i, s := range querySections {
		text := NotAvailable
		if i < len(pieces) {
			text = pieces[i]
		}
		fmt.Fprintf(&b, "================ %s ================\n%s\n\n", s.Header, text)
	}
	fmt.Fprintf(&b, "Please answer the following query:\n%s\n", question)
	return b.String()
}

// AnswerQuery asks the query model about one of a contract's reports. The
// prompt carries the report, the source and both diagrams as currently
// persisted; pieces that cannot be loaded are marked as not available. The
// model's answer is returned verbatim, so "" means the model gave nothing.
func (c *Controller) AnswerQuery(ctx context.Context, reportKind domain.Kind, question, sessionID, fingerprint string) (string, error) {
	if !reportKind.IsReport() {
		return "", fmt.Errorf("cannot query %q: only the functions and journey reports are queryable", reportKind)
	}
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}
	if !domain.IsSessionID(sessionID) {
		return "", store.InvalidIDError("session", sessionID)
	}

	log := c.log.With(
		zap.String("session", sessionID),
		zap.String("fingerprint", domain.ShortFingerprint(fingerprint)),
		zap.String("report", string(reportKind)),
	)
	pieces := make([]string, len(querySections))
	for i, s := range querySections {
		kind := s.Kind
		if i == 0 {
			kind = reportKind
		}
		pieces[i] = NotAvailable
		a, err := c.store.LoadArtifact(ctx, sessionID, fingerprint, kind)
		if err != nil {
			log.Debug("query context piece unavailable", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		pieces[i] = a.Text
	}

	return c.gw.Invoke(ctx, BuildQueryPrompt(pieces, question), c.queryModel), nil
}
