package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pxng0lin/DeepCurrent/internal/config"
	"github.com/pxng0lin/DeepCurrent/internal/selftest"
)

func modelsCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:     "models",
		Short:   "List selectable models and the current choice",
		Args:    cobra.NoArgs,
		GroupID: "setup",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			for i, m := range config.Models {
				var roles []string
				if m == a.cfg.AnalysisModel {
					roles = append(roles, "analysis")
				}
				if m == a.cfg.QueryModel {
					roles = append(roles, "query")
				}
				line := fmt.Sprintf("%d. %s", i+1, m)
				if len(roles) > 0 {
					line += fmt.Sprintf("  %v", roles)
				}
				a.println(line)
			}
			for _, m := range []string{a.cfg.AnalysisModel, a.cfg.QueryModel} {
				if !config.IsKnownModel(m) {
					a.println(a.render.Notice("custom model in use: %s", m))
				}
			}
			return nil
		},
	})
}

func configCmd(a *app) *cobra.Command {
	var save bool
	cmd := newCommand(a, CommandConfig{
		Use:     "config",
		Short:   "Print the effective configuration",
		Long:    "Prints the configuration after merging the config file, DEEPCURRENT_* variables and flags.",
		Args:    cobra.NoArgs,
		GroupID: "setup",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			if save {
				path := a.opts.configPath
				if path == "" {
					paths := config.GetPaths()
					if err := config.EnsureDir(paths.Home); err != nil {
						return err
					}
					path = paths.ConfigFile
				}
				if err := a.cfg.Save(path); err != nil {
					return err
				}
				a.println(a.render.Notice("saved %s", path))
				return nil
			}
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			a.print(string(data))
			return nil
		},
	})
	cmd.Flags().BoolVar(&save, "save", false, "Write the effective configuration to the config file")
	return cmd
}

func doctorCmd(a *app) *cobra.Command {
	var quick bool
	cmd := newCommand(a, CommandConfig{
		Use:        "doctor",
		Short:      "Check the endpoint, output root and database",
		Args:       cobra.NoArgs,
		GroupID:    "setup",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			opts := selftest.Options{Config: a.cfg, Store: a.store}
			if f, ok := a.in.(*os.File); ok {
				opts.Stdin = f
			}
			env := selftest.Check(cmd.Context(), opts)
			if quick {
				a.println(env.QuickCheck())
			} else {
				a.print(env.Summary())
			}
			if !env.IsHealthy() {
				return errors.New("environment check failed")
			}
			return nil
		},
	})
	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "One-line status")
	return cmd
}
