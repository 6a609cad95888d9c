package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
)

func sessionsCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:        "sessions",
		Short:      "List analysis sessions, newest first",
		Aliases:    []string{"ls"},
		Args:       cobra.NoArgs,
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.files.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			a.println(a.render.Sessions(sessions))
			return nil
		},
	})
}

func contractsCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:        "contracts [session]",
		Short:      "List the contracts of a session (default: latest)",
		Args:       cobra.MaximumNArgs(1),
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			sessionID, err := a.resolveSession(cmd.Context(), firstArg(args))
			if err != nil {
				return err
			}
			refs, err := a.files.ListContracts(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			a.println(a.render.Contracts(sessionID, refs))
			return nil
		},
	})
}

func showCmd(a *app) *cobra.Command {
	var kindName string
	cmd := newCommand(a, CommandConfig{
		Use:   "show <session> <contract>",
		Short: "Print one artifact of a contract",
		Example: "  deepcurrent show latest Vault\n" +
			"  deepcurrent show 2 Vault.sol --kind call-diagram",
		Args:       cobra.ExactArgs(2),
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(kindName)
			if err != nil {
				return fmt.Errorf("%w (one of %s)", err, strings.Join(domain.KindNames(), ", "))
			}
			ctx := cmd.Context()
			sessionID, err := a.resolveSession(ctx, args[0])
			if err != nil {
				return err
			}
			ref, err := a.resolveContract(ctx, sessionID, args[1])
			if err != nil {
				return err
			}
			artifact, err := a.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, kind)
			if err != nil {
				return err
			}
			a.print(a.render.Artifact(ref, artifact))
			return nil
		},
	})
	cmd.Flags().StringVarP(&kindName, "kind", "k", "combined", "Artifact: "+strings.Join(domain.KindNames(), ", "))
	return cmd
}

func statusCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:        "status [session] [contract]",
		Short:      "Show which artifacts are present, missing or invalid",
		Args:       cobra.MaximumNArgs(2),
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sessionID, err := a.resolveSession(ctx, firstArg(args))
			if err != nil {
				return err
			}
			refs, err := a.files.ListContracts(ctx, sessionID)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				ref, err := matchContract(refs, args[1])
				if err != nil {
					return err
				}
				refs = []domain.ContractRef{ref}
			}

			ctrl, err := a.controller(repair.Never)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				a.println(a.render.Status(ref, ctrl.Status(ctx, sessionID, ref.Fingerprint)))
			}
			return nil
		},
	})
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
