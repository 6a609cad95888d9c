package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/pipeline"
)

func analyzeCmd(a *app) *cobra.Command {
	var pattern string
	cmd := newCommand(a, CommandConfig{
		Use:   "analyze <dir>",
		Short: "Analyse every contract in a directory into a new session",
		Long: `Runs the four analysis phases for each contract found in <dir>:
functions report, journey report, journey diagram and call diagram, then
writes the final analysis report. Every output is persisted as soon as it
exists, to the session directory and to the analysis database.`,
		Example:    "  deepcurrent analyze ./contracts\n  deepcurrent analyze ./src --pattern '**/*.sol'",
		Args:       cobra.ExactArgs(1),
		GroupID:    "analysis",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			opts := []pipeline.Option{pipeline.WithObserver(func(c *domain.Contract, s pipeline.Stage) {
				if a.render.Pretty() {
					fmt.Fprintf(a.err, "  %-28s %s\n", c.Filename, s)
				}
			})}
			if pattern != "" {
				opts = append(opts, pipeline.WithPattern(pattern))
			}

			batch, err := a.orchestrator(opts...).AnalyzeDirectory(cmd.Context(), args[0])
			if batch != nil {
				a.print(a.render.Batch(batch))
				a.println(a.render.Notice("results in %s", batch.Session.Dir))
			}
			return err
		},
	})
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Contract glob pattern (default from config, *.sol)")
	return cmd
}
