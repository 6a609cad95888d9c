package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/validate"
)

// resolveSession accepts a session name, "latest" (or empty), or a 1-based
// position in the newest-first session list.
func (a *app) resolveSession(ctx context.Context, arg string) (string, error) {
	if domain.IsSessionID(arg) {
		return arg, nil
	}
	sessions, err := a.files.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	if len(sessions) == 0 {
		return "", fmt.Errorf("no analysis sessions under %s", a.files.Root())
	}
	if arg == "" || arg == "latest" {
		return sessions[0].ID, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(sessions) {
			return "", fmt.Errorf("session %d out of range 1-%d", n, len(sessions))
		}
		return sessions[n-1].ID, nil
	}
	return "", store.InvalidIDError("session", arg)
}

// resolveContract accepts a contract name, filename, 1-based position in the
// session index, or a fingerprint prefix of at least six characters.
func (a *app) resolveContract(ctx context.Context, sessionID, arg string) (domain.ContractRef, error) {
	refs, err := a.files.ListContracts(ctx, sessionID)
	if err != nil {
		return domain.ContractRef{}, err
	}
	return matchContract(refs, arg)
}

func matchContract(refs []domain.ContractRef, arg string) (domain.ContractRef, error) {
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(refs) {
		return refs[n-1], nil
	}
	for _, ref := range refs {
		if ref.Name == arg || ref.Filename == arg {
			return ref, nil
		}
	}
	var found []domain.ContractRef
	if len(arg) >= 6 {
		for _, ref := range refs {
			if strings.HasPrefix(ref.Fingerprint, arg) {
				found = append(found, ref)
			}
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return domain.ContractRef{}, store.NewNotFoundError("contract", arg)
	default:
		return domain.ContractRef{}, fmt.Errorf("fingerprint prefix %q is ambiguous (%d matches)", arg, len(found))
	}
}

// isInteractive reports whether r is a terminal.
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// promptPolicy asks on the terminal before each regeneration.
type promptPolicy struct {
	in  io.Reader
	out io.Writer
}

func newPromptPolicy(in io.Reader, out io.Writer) *promptPolicy {
	return &promptPolicy{in: in, out: out}
}

// Confirm implements repair.Policy.
func (p *promptPolicy) Confirm(_ context.Context, ref domain.ContractRef, kind domain.Kind, reason validate.Reason) bool {
	fmt.Fprintf(p.out, "%s: %s is %s. Regenerate? [y/N] ", ref.Name, kind.Title(), reason)
	line, err := scanLine(p.in)
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// repairPolicy picks the regeneration policy: --yes always regenerates,
// a terminal prompts, anything else never regenerates.
func (a *app) repairPolicy(yes bool) repair.Policy {
	if yes {
		return repair.Always
	}
	if isInteractive(a.in) {
		return newPromptPolicy(a.in, a.out)
	}
	return repair.Never
}

// readLine prompts and reads one line from the app input.
func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := scanLine(in)
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// scanLine reads up to and including the next newline, one byte at a time.
// Nothing past the newline is consumed, so the pickers that share stdin
// between prompts see every key.
func scanLine(r io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			sb.WriteByte(buf[0])
			if buf[0] == '\n' {
				return sb.String(), nil
			}
		}
		if err != nil {
			return sb.String(), err
		}
	}
}
