package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
)

func repairCmd(a *app) *cobra.Command {
	var yes, all bool
	cmd := newCommand(a, CommandConfig{
		Use:   "repair <session> [contract]",
		Short: "Check stored diagrams and regenerate the invalid ones",
		Long: `Validates the journey and call diagrams of a contract. An invalid or
missing diagram is regenerated from its persisted upstream report with the
analysis model. A regenerated diagram is kept only if it validates.

Without --yes the command asks before each regeneration on a terminal, and
never regenerates otherwise.`,
		Example:    "  deepcurrent repair latest Vault\n  deepcurrent repair latest --all --yes",
		Args:       cobra.RangeArgs(1, 2),
		GroupID:    "analysis",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID, err := a.resolveSession(ctx, args[0])
			if err != nil {
				return err
			}
			refs, err := a.files.ListContracts(ctx, sessionID)
			if err != nil {
				return err
			}
			switch {
			case len(args) == 2:
				ref, err := matchContract(refs, args[1])
				if err != nil {
					return err
				}
				refs = []domain.ContractRef{ref}
			case !all:
				return errors.New("name a contract or pass --all")
			}

			ctrl, err := a.controller(a.repairPolicy(yes))
			if err != nil {
				return err
			}
			var failed []string
			for _, ref := range refs {
				if all && len(args) == 1 && !repair.NeedsRepair(ctrl.Status(ctx, sessionID, ref.Fingerprint)) {
					continue
				}
				rep, err := ctrl.CheckAndRepair(ctx, sessionID, ref.Fingerprint)
				if err != nil {
					return err
				}
				a.print(a.render.RepairReport(rep))
				if rep.Count(domain.OutcomeFailed)+rep.Count(domain.OutcomeMissingDependency) > 0 {
					failed = append(failed, ref.Name)
				}
			}
			if len(failed) > 0 {
				a.println(a.render.Warn("unresolved diagrams remain for %s", strings.Join(failed, ", ")))
			}
			return nil
		},
	})
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Regenerate without asking")
	cmd.Flags().BoolVar(&all, "all", false, "Check every contract in the session that needs repair")
	return cmd
}
