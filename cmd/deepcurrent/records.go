package main

import (
	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/store"
)

func attemptsCmd(a *app) *cobra.Command {
	var session, outcome, kind string
	var limit int
	cmd := newCommand(a, CommandConfig{
		Use:        "attempts",
		Short:      "List recorded diagram repair attempts",
		Args:       cobra.NoArgs,
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			f := store.DefaultFilter().WithLimit(limit)
			if session != "" {
				id, err := a.resolveSession(cmd.Context(), session)
				if err != nil {
					return err
				}
				f = f.WithWhere("session_id", id)
			}
			if outcome != "" {
				f = f.WithWhere("outcome", outcome)
			}
			if kind != "" {
				f = f.WithWhere("kind", kind)
			}
			attempts, err := a.db.ListAttempts(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.println(a.render.Attempts(attempts))
			return nil
		},
	})
	cmd.Flags().StringVarP(&session, "session", "s", "", "Only attempts in this session")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Only this outcome (repaired, failed, declined, missing_dependency)")
	cmd.Flags().StringVar(&kind, "kind", "", "Only this diagram kind (journey_diagram, call_diagram)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Max results")
	return cmd
}

func recordsCmd(a *app) *cobra.Command {
	var session, filename string
	var limit int
	cmd := newCommand(a, CommandConfig{
		Use:        "records",
		Short:      "List contract rows in the analysis database",
		Args:       cobra.NoArgs,
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			f := store.DefaultFilter().WithLimit(limit)
			if session != "" {
				id, err := a.resolveSession(cmd.Context(), session)
				if err != nil {
					return err
				}
				f = f.WithWhere("session_id", id)
			}
			if filename != "" {
				f = f.WithWhere("filename", filename)
			}
			records, err := a.db.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.println(a.render.Records(records))
			return nil
		},
	})
	cmd.Flags().StringVarP(&session, "session", "s", "", "Only rows written by this session")
	cmd.Flags().StringVarP(&filename, "file", "f", "", "Only this contract filename")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Max results")
	return cmd
}
