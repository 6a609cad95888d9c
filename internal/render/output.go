package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/pipeline"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
	"github.com/pxng0lin/DeepCurrent/internal/store/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

var titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

// Renderer handles output formatting. Pretty output uses color and renders
// markdown; plain output is one record per line.
type Renderer struct {
	pretty bool
	width  int
}

// New creates a new renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty, width: 100}
}

// WithWidth sets the wrap width for markdown.
func (r *Renderer) WithWidth(w int) *Renderer {
	if w > 20 {
		r.width = w
	}
	return r
}

// Pretty reports whether the renderer produces decorated output.
func (r *Renderer) Pretty() bool { return r.pretty }

func (r *Renderer) title(sb *strings.Builder, title string, width int) {
	if r.pretty {
		sb.WriteString(titleStyle.Render(title) + "\n")
		sb.WriteString(strings.Repeat("─", width) + "\n")
		return
	}
	sb.WriteString(title + "\n")
}

func (r *Renderer) table(title string, headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	return titleStyle.Render(title) + "\n" + t.String() + "\n"
}

// Notice formats an informational one-liner.
func (r *Renderer) Notice(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if r.pretty {
		return color.CyanString("• ") + msg
	}
	return msg
}

// Warn formats a warning one-liner.
func (r *Renderer) Warn(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if r.pretty {
		return color.YellowString("! ") + msg
	}
	return "warning: " + msg
}

// Fail formats an error one-liner.
func (r *Renderer) Fail(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if r.pretty {
		return color.RedString("✗ ") + msg
	}
	return "error: " + msg
}

// Sessions formats the session list.
func (r *Renderer) Sessions(sessions []*domain.Session) string {
	if len(sessions) == 0 {
		return "No analysis sessions found"
	}
	if r.pretty {
		rows := make([][]string, len(sessions))
		for i, s := range sessions {
			rows[i] = []string{fmt.Sprint(i + 1), s.ID, s.CreatedAt.Format(timeLayout)}
		}
		return r.table(fmt.Sprintf("Sessions (%d)", len(sessions)), []string{"#", "SESSION", "CREATED"}, rows)
	}
	var sb strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&sb, "%s\t%s\n", s.ID, s.CreatedAt.Format(timeLayout))
	}
	return sb.String()
}

// Contracts formats a session's contract index.
func (r *Renderer) Contracts(sessionID string, refs []domain.ContractRef) string {
	if len(refs) == 0 {
		return fmt.Sprintf("No contracts in %s", sessionID)
	}
	if r.pretty {
		rows := make([][]string, len(refs))
		for i, ref := range refs {
			rows[i] = []string{fmt.Sprint(i + 1), ref.Name, ref.Filename, domain.ShortFingerprint(ref.Fingerprint)}
		}
		return r.table(fmt.Sprintf("%s (%d contracts)", sessionID, len(refs)), []string{"#", "CONTRACT", "FILE", "FINGERPRINT"}, rows)
	}
	var sb strings.Builder
	for _, ref := range refs {
		fmt.Fprintf(&sb, "%s\t%s\t%s\n", domain.ShortFingerprint(ref.Fingerprint), ref.Name, ref.Filename)
	}
	return sb.String()
}

var stateColors = map[repair.State]func(string, ...any) string{
	repair.StatePresent: color.GreenString,
	repair.StateMissing: color.HiBlackString,
	repair.StateInvalid: color.YellowString,
	repair.StateError:   color.RedString,
}

// Status formats the artifact status of one contract.
func (r *Renderer) Status(ref domain.ContractRef, statuses []repair.ArtifactStatus) string {
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("%s [%s]", ref.Name, domain.ShortFingerprint(ref.Fingerprint)), 60)
	for _, st := range statuses {
		detail := ""
		switch st.State {
		case repair.StatePresent:
			detail = fmt.Sprintf("%s  %s", FormatBytes(st.Bytes), st.UpdatedAt.Format(timeLayout))
		case repair.StateInvalid:
			detail = string(st.Reason)
		case repair.StateError:
			detail = st.Err.Error()
		}
		if r.pretty {
			paint := stateColors[st.State]
			fmt.Fprintf(&sb, "  %-28s %s  %s\n", st.Kind.Title(), paint("%-8s", st.State), detail)
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", st.Kind, st.State, detail)
		}
	}
	if r.pretty && repair.NeedsRepair(statuses) {
		sb.WriteString("\n" + color.YellowString("Diagrams need repair: run `deepcurrent repair`") + "\n")
	}
	return sb.String()
}

// RepairReport formats the outcome of a check-and-repair pass.
func (r *Renderer) RepairReport(rep *repair.Report) string {
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("Integrity check: %s", rep.Contract.Name), 60)
	for _, s := range rep.Steps {
		if r.pretty {
			line := fmt.Sprintf("  %s %-24s %s", OutcomeIcon(s.Outcome), s.Kind.Title(), s.Outcome)
			if s.Detail != "" && s.Outcome != domain.OutcomeValid {
				line += color.HiBlackString(" (" + Truncate(s.Detail, 60) + ")")
			}
			sb.WriteString(line + "\n")
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n", s.Kind, s.Outcome, s.Reason, s.Detail)
		}
	}
	if rep.CombinedRebuilt {
		sb.WriteString(r.Notice("final analysis report rebuilt") + "\n")
	}
	for _, err := range rep.Errors {
		sb.WriteString(r.Warn("%v", err) + "\n")
	}
	return sb.String()
}

// Attempts formats recorded repair attempts.
func (r *Renderer) Attempts(attempts []*domain.RepairAttempt) string {
	if len(attempts) == 0 {
		return "No repair attempts recorded"
	}
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("Repair attempts (%d)", len(attempts)), 70)
	for _, a := range attempts {
		at := a.AttemptedAt.Local().Format(timeLayout)
		fp := domain.ShortFingerprint(a.Fingerprint)
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s %s %-16s %s\n", OutcomeIcon(a.Outcome), color.HiBlackString(at), fp, a.Kind, a.Outcome)
			if a.Detail != "" {
				fmt.Fprintf(&sb, "    └─ %s\n", Truncate(a.Detail, 70))
			}
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\t%s\t%s\n", a.ID, at, a.SessionID, fp, a.Kind, a.Outcome)
		}
	}
	return sb.String()
}

// Records formats rows of the analysis database.
func (r *Renderer) Records(records []*sqlite.Record) string {
	if len(records) == 0 {
		return "No analysis records found"
	}
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("Analysis records (%d)", len(records)), 70)
	for _, rec := range records {
		var have []string
		for _, k := range domain.PhaseKinds {
			if rec.Text(k) != "" {
				have = append(have, string(k))
			}
		}
		at := rec.AnalysedAt.Local().Format(timeLayout)
		fp := domain.ShortFingerprint(rec.Fingerprint)
		if r.pretty {
			fmt.Fprintf(&sb, "%s %-28s %s %s\n", fp, rec.Filename, color.HiBlackString(at), rec.SessionID)
			line := fmt.Sprintf("    └─ %d/%d artifacts", len(have), len(domain.PhaseKinds))
			if rec.UpdatedAt.After(rec.AnalysedAt) {
				line += ", updated " + rec.UpdatedAt.Local().Format(timeLayout)
			}
			sb.WriteString(line + "\n")
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\t%s\n", fp, rec.Filename, at, rec.SessionID, strings.Join(have, ","))
		}
	}
	return sb.String()
}

// Batch formats the summary of a directory analysis.
func (r *Renderer) Batch(b *pipeline.Batch) string {
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("Session %s", b.Session.ID), 60)
	for _, res := range b.Results {
		icon := color.GreenString("✓")
		note := ""
		if len(res.Substituted) > 0 {
			icon = color.YellowString("!")
			kinds := make([]string, len(res.Substituted))
			for i, k := range res.Substituted {
				kinds[i] = string(k)
			}
			note = " substituted: " + strings.Join(kinds, ",")
		}
		if len(res.PersistErrors) > 0 {
			icon = color.RedString("✗")
			note += fmt.Sprintf(" persist errors: %d", len(res.PersistErrors))
		}
		if r.pretty {
			fmt.Fprintf(&sb, "%s %-32s %s%s\n", icon, res.Contract.Filename, color.HiBlackString(FormatDuration(res.Duration)), note)
		} else {
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", res.Contract.Filename, FormatDuration(res.Duration), strings.TrimSpace(note))
		}
	}
	for _, s := range b.Skipped {
		sb.WriteString(r.Warn("skipped %s: %s", s.Path, s.Reason) + "\n")
	}
	for _, err := range b.Failed {
		sb.WriteString(r.Fail("%v", err) + "\n")
	}
	fmt.Fprintf(&sb, "%d analysed, %d skipped, %d failed\n", len(b.Results), len(b.Skipped), len(b.Failed))
	return sb.String()
}

// Markdown renders an artifact body. Plain mode returns it unchanged.
func (r *Renderer) Markdown(text string) string {
	if !r.pretty {
		return text
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return text
	}
	out, err := tr.Render(text)
	if err != nil {
		return text
	}
	return out
}

// Artifact formats one artifact with a title line.
func (r *Renderer) Artifact(ref domain.ContractRef, a *domain.Artifact) string {
	var sb strings.Builder
	r.title(&sb, fmt.Sprintf("%s: %s", ref.Name, a.Kind.Title()), 60)
	body := a.Text
	if a.Kind.IsDiagram() && r.pretty {
		body = "```mermaid\n" + strings.TrimSpace(a.Text) + "\n```\n"
	}
	sb.WriteString(r.Markdown(body))
	return sb.String()
}
