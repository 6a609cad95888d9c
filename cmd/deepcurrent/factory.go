package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CommandFunc defines the function signature for command execution.
type CommandFunc func(cmd *cobra.Command, args []string) error

// CommandConfig holds configuration for creating standardized commands.
type CommandConfig struct {
	Use     string
	Short   string
	Long    string
	Args    cobra.PositionalArgs
	Example string
	Aliases []string
	GroupID string
	// NeedsStore opens the stores and model components before RunFunc.
	NeedsStore bool
	RunFunc    CommandFunc
}

// newCommand creates a standardized Cobra command: configuration is
// resolved, stores are opened when needed and always closed afterwards.
func newCommand(a *app, cfg CommandConfig) *cobra.Command {
	return &cobra.Command{
		Use:     cfg.Use,
		Short:   cfg.Short,
		Long:    cfg.Long,
		Args:    cfg.Args,
		Example: cfg.Example,
		Aliases: cfg.Aliases,
		GroupID: cfg.GroupID,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if err := a.configure(); err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if cfg.NeedsStore {
				if err := a.open(cmd.Context()); err != nil {
					return err
				}
			}

			start := time.Now()
			err = cfg.RunFunc(cmd, args)
			a.log.Debug("command finished",
				zap.String("command", cmd.CommandPath()),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err),
			)
			return err
		},
	}
}
