package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pxng0lin/DeepCurrent/internal/config"
	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/store"
	"github.com/pxng0lin/DeepCurrent/internal/tui"
)

// completionServer answers each phase prompt with a canned reply.
func completionServer(t *testing.T) *httptest.Server {
	t.Helper()
	replies := []struct{ prefix, text string }{
		{"Phase 1:", "f(): public, no modifiers"},
		{"Phase 2:", "The user calls f."},
		{"Phase 3", "flowchart TD\n    A[User] --> B[f]"},
		{"Based on the following materials", "ANSWER: anyone can call f"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		text := ""
		for _, rep := range replies {
			if strings.HasPrefix(req.Prompt, rep.prefix) {
				text = rep.text
				break
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]string{{"text": text}}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

type cli struct {
	t        *testing.T
	endpoint string
	out      string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("DEEPCURRENT_HOME", t.TempDir())
	config.ResetEnv()
	t.Cleanup(config.ResetEnv)
	srv := completionServer(t)
	return &cli{t: t, endpoint: srv.URL, out: filepath.Join(t.TempDir(), "out")}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(""), &out, &errOut)
	root.SetArgs(append([]string{"--endpoint", c.endpoint, "--output", c.out}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, strings.Join(args, " "))
	return out
}

func writeContracts(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

func sessionDir(t *testing.T, root string) string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() && domain.IsSessionID(e.Name()) {
			return filepath.Join(root, e.Name())
		}
	}
	t.Fatalf("no session under %s", root)
	return ""
}

// --- Command Tests ---

func TestAnalyzeBrowseQueryRepair(t *testing.T) {
	c := newCLI(t)
	dir := writeContracts(t, map[string]string{
		"A.sol": "contract A { function f() public {} }",
		"B.sol": "contract B { function g() external {} }",
	})

	out := c.mustRun("analyze", dir)
	assert.Contains(t, out, "2 analysed, 0 skipped, 0 failed")
	sess := sessionDir(t, c.out)
	assert.FileExists(t, filepath.Join(c.out, config.DefaultDatabase))

	out = c.mustRun("sessions")
	assert.Contains(t, out, filepath.Base(sess))

	out = c.mustRun("contracts", "latest")
	assert.Contains(t, out, "\tA\tA.sol")
	assert.Contains(t, out, "\tB\tB.sol")

	out = c.mustRun("show", "1", "A", "--kind", "call-diagram")
	assert.Contains(t, out, "flowchart TD\n    A[User] --> B[f]")

	out = c.mustRun("show", "latest", "A.sol")
	assert.Contains(t, out, "# Final Analysis Report for A")

	out = c.mustRun("query", "latest", "A", "who", "can", "call", "f?", "--report", "journey")
	assert.Contains(t, out, "ANSWER: anyone can call f")

	require.NoError(t, os.WriteFile(filepath.Join(sess, "A_call_diagram.md"), []byte("no diagram here"), 0644))
	out = c.mustRun("status", "latest", "A")
	assert.Contains(t, out, "call_diagram\tinvalid\tmissing_root")

	out = c.mustRun("repair", "latest", "A")
	assert.Contains(t, out, "call_diagram\tdeclined", "no terminal means no regeneration")

	out = c.mustRun("repair", "latest", "--all", "--yes")
	assert.Contains(t, out, "call_diagram\trepaired")
	assert.NotContains(t, out, "Integrity check: B", "healthy contracts are skipped")
	data, err := os.ReadFile(filepath.Join(sess, "A_call_diagram.md"))
	require.NoError(t, err)
	assert.Equal(t, "flowchart TD\n    A[User] --> B[f]", string(data))

	out = c.mustRun("attempts", "--outcome", "repaired")
	assert.Contains(t, out, "call_diagram\trepaired")

	out = c.mustRun("records", "--file", "B.sol")
	assert.Contains(t, out, "B.sol")
	assert.NotContains(t, out, "A.sol")
}

func TestAnalyzeEmptyDirectory(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("analyze", t.TempDir())

	assert.ErrorContains(t, err, "no files matching")
}

func TestModels(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("models", "--query-model", "gemma3:4b")

	assert.Contains(t, out, "1. deepseek-r1  [analysis]")
	assert.Contains(t, out, "3. gemma3:4b  [query]")
}

func TestUnknownModelRejected(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("models", "--analysis-model", "gpt-9")

	assert.ErrorContains(t, err, "analysis_model \"gpt-9\" is not one of")
}

func TestConfigPrintsEffective(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("config", "--strict")

	assert.Contains(t, out, "endpoint: "+c.endpoint)
	assert.Contains(t, out, "strict_validation: true")
}

func TestRepairNeedsContractOrAll(t *testing.T) {
	c := newCLI(t)
	c.mustRun("analyze", writeContracts(t, map[string]string{"A.sol": "contract A {}"}))

	_, err := c.run("repair", "latest")

	assert.ErrorContains(t, err, "--all")
}

func TestBrowseEmptySessionGoesBack(t *testing.T) {
	c := newCLI(t)
	c.mustRun("analyze", writeContracts(t, map[string]string{"A.sol": "contract A {}"}))
	empty := "analysis_20200101_000000"
	require.NoError(t, os.MkdirAll(filepath.Join(c.out, empty), 0755))

	var out bytes.Buffer
	a := newApp(strings.NewReader(""), &out, io.Discard)
	a.opts.endpoint = c.endpoint
	a.opts.outputRoot = c.out
	require.NoError(t, a.configure())
	require.NoError(t, a.open(t.Context()))
	defer a.close()

	var titles []string
	a.pick = func(title string, items []tui.Item, in io.Reader, out io.Writer) (tui.Item, error) {
		titles = append(titles, title)
		if len(items) == 0 {
			return tui.Item{}, tui.ErrNoItems
		}
		if len(titles) == 1 {
			for _, it := range items {
				if it.Value == empty {
					return it, nil
				}
			}
		}
		return tui.Item{}, tui.ErrCancelled
	}
	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())

	err := a.browse(cmd)

	assert.ErrorIs(t, err, tui.ErrCancelled)
	assert.Equal(t, []string{"Sessions", empty, "Sessions"}, titles)
	assert.Contains(t, out.String(), "warning: "+empty+" has no contracts")
}

// --- Helper Tests ---

func TestScanLineStopsAtNewline(t *testing.T) {
	in := strings.NewReader("why?\nj")
	var out bytes.Buffer

	q, err := readLine(in, &out, "Your question: ")
	require.NoError(t, err)
	assert.Equal(t, "why?", q)

	rest, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "j", string(rest), "keys after the line stay unread")

	last, err := scanLine(strings.NewReader("no newline"))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "no newline", last)
}

func TestMatchContract(t *testing.T) {
	refs := []domain.ContractRef{
		{Fingerprint: "aaaaaa111111", Name: "Vault", Filename: "Vault.sol"},
		{Fingerprint: "aaaaaa222222", Name: "Token", Filename: "Token.sol"},
		{Fingerprint: "bbbbbb333333", Name: "Vault_2", Filename: "Vault.sol"},
	}
	tests := []struct {
		arg     string
		want    string
		wantErr string
	}{
		{arg: "2", want: "Token"},
		{arg: "Vault", want: "Vault"},
		{arg: "Token.sol", want: "Token"},
		{arg: "Vault_2", want: "Vault_2"},
		{arg: "bbbbbb", want: "Vault_2"},
		{arg: "aaaaaa", wantErr: "ambiguous"},
		{arg: "aaa", wantErr: "not found"},
		{arg: "Missing", wantErr: "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := matchContract(refs, tt.arg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestMatchContractNotFoundIsTyped(t *testing.T) {
	_, err := matchContract(nil, "Vault")
	assert.True(t, store.IsNotFound(err))
}

func TestPromptPolicy(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := newPromptPolicy(strings.NewReader(tt.input), &out)

		got := p.Confirm(t.Context(), domain.ContractRef{Name: "Vault"}, domain.KindCallDiagram, "placeholder")

		assert.Equal(t, tt.want, got, "%q", tt.input)
		assert.Contains(t, out.String(), "Vault: Function Call Diagram is placeholder. Regenerate? [y/N]")
	}
}

func TestDoctor(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("doctor", "--quick")

	assert.Contains(t, out, "endpoint:up mode:non-interactive analysis:deepseek-r1")
}
