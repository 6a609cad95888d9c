// Package main provides the DeepCurrent CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := newApp(in, out, errOut)

	rootCmd := &cobra.Command{
		Use:   "deepcurrent",
		Short: "Smart-contract analysis with local language models",
		Long: `DeepCurrent: LLM-driven smart-contract analysis.

Each contract in a directory goes through four phases (functions report,
journey report, journey diagram, call diagram) and a final combined report.
Results are kept per session under the output root and in a sqlite database,
and can later be browsed, queried and repaired.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.opts.prettySet = cmd.Flags().Changed("pretty")
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "Config file (default ~/.deepcurrent/config.yaml)")
	flags.StringVar(&a.opts.endpoint, "endpoint", "", "Completion endpoint URL")
	flags.StringVar(&a.opts.analysisModel, "analysis-model", "", "Model for the analysis phases and diagram regeneration")
	flags.StringVar(&a.opts.queryModel, "query-model", "", "Model for answering queries")
	flags.StringVarP(&a.opts.outputRoot, "output", "o", "", "Directory holding session directories and the database")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Debug logging")
	flags.BoolVar(&a.opts.pretty, "pretty", true, "Pretty print output (default when stdout is a terminal)")
	flags.BoolVar(&a.opts.strict, "strict", false, "Validate only the fenced block of a diagram")

	rootCmd.AddGroup(
		&cobra.Group{ID: "analysis", Title: "Analysis:"},
		&cobra.Group{ID: "browse", Title: "Browsing:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
	rootCmd.AddCommand(
		analyzeCmd(a),
		repairCmd(a),
		queryCmd(a),
		sessionsCmd(a),
		contractsCmd(a),
		showCmd(a),
		statusCmd(a),
		attemptsCmd(a),
		recordsCmd(a),
		browseCmd(a),
		modelsCmd(a),
		configCmd(a),
		doctorCmd(a),
	)
	return rootCmd
}
