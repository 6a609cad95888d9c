package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/tui"
)

const (
	actionStatus = "status"
	actionRepair = "repair"
	actionQueryF = "query:" + string(domain.KindFunctionsReport)
	actionQueryJ = "query:" + string(domain.KindJourneyReport)
)

func browseCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:        "browse",
		Short:      "Interactively browse sessions, contracts and artifacts",
		Args:       cobra.NoArgs,
		GroupID:    "browse",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			if !isInteractive(a.in) {
				return errors.New("browse needs a terminal; use sessions, contracts and show instead")
			}
			err := a.browse(cmd)
			if errors.Is(err, tui.ErrCancelled) {
				return nil
			}
			return err
		},
	})
}

func (a *app) browse(cmd *cobra.Command) error {
	ctx := cmd.Context()
	for {
		sessionID, err := a.pickSession(ctx)
		if err != nil {
			return err
		}
		for {
			ref, err := a.pickContract(ctx, sessionID)
			if errors.Is(err, tui.ErrNoItems) {
				a.println(a.render.Warn("%s has no contracts", sessionID))
				break
			}
			if errors.Is(err, tui.ErrCancelled) {
				break
			}
			if err != nil {
				return err
			}
			if err := a.contractMenu(cmd, sessionID, ref); err != nil {
				return err
			}
		}
	}
}

func (a *app) pickSession(ctx context.Context) (string, error) {
	sessions, err := a.files.ListSessions(ctx)
	if err != nil {
		return "", err
	}
	items := make([]tui.Item, len(sessions))
	for i, s := range sessions {
		items[i] = tui.Item{Label: s.ID, Detail: s.CreatedAt.Format("2006-01-02 15:04:05"), Value: s.ID}
	}
	choice, err := a.pick("Sessions", items, a.in, nil)
	return choice.Value, err
}

func (a *app) pickContract(ctx context.Context, sessionID string) (domain.ContractRef, error) {
	refs, err := a.files.ListContracts(ctx, sessionID)
	if err != nil {
		return domain.ContractRef{}, err
	}
	items := make([]tui.Item, len(refs))
	for i, ref := range refs {
		items[i] = tui.Item{Label: ref.Name, Detail: ref.Filename + "  " + domain.ShortFingerprint(ref.Fingerprint), Value: ref.Fingerprint}
	}
	choice, err := a.pick(sessionID, items, a.in, nil)
	if err != nil {
		return domain.ContractRef{}, err
	}
	return matchContract(refs, choice.Value)
}

func contractActions() []tui.Item {
	var items []tui.Item
	for _, k := range domain.AllKinds {
		items = append(items, tui.Item{Label: "View " + k.Title(), Value: string(k)})
	}
	return append(items,
		tui.Item{Label: "Status", Detail: "present, missing or invalid artifacts", Value: actionStatus},
		tui.Item{Label: "Check and regenerate diagrams", Value: actionRepair},
		tui.Item{Label: "Ask about the functions report", Value: actionQueryF},
		tui.Item{Label: "Ask about the journey report", Value: actionQueryJ},
	)
}

func (a *app) contractMenu(cmd *cobra.Command, sessionID string, ref domain.ContractRef) error {
	ctx := cmd.Context()
	in := a.in
	for {
		choice, err := a.pick(fmt.Sprintf("%s / %s", sessionID, ref.Name), contractActions(), in, nil)
		if errors.Is(err, tui.ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}

		switch choice.Value {
		case actionStatus:
			ctrl, err := a.controller(nil)
			if err != nil {
				return err
			}
			a.print(a.render.Status(ref, ctrl.Status(ctx, sessionID, ref.Fingerprint)))
		case actionRepair:
			ctrl, err := a.controller(newPromptPolicy(in, a.out))
			if err != nil {
				return err
			}
			rep, err := ctrl.CheckAndRepair(ctx, sessionID, ref.Fingerprint)
			if err != nil {
				return err
			}
			a.print(a.render.RepairReport(rep))
		case actionQueryF, actionQueryJ:
			kind := domain.Kind(choice.Value[len("query:"):])
			question, err := readLine(in, a.out, "Your question: ")
			if err != nil {
				return err
			}
			if question != "" {
				if err := a.ask(cmd, sessionID, ref, kind, question); err != nil {
					a.println(a.render.Fail("%v", err))
				}
			}
		default:
			artifact, err := a.store.LoadArtifact(ctx, sessionID, ref.Fingerprint, domain.Kind(choice.Value))
			if err != nil {
				a.println(a.render.Fail("%v", err))
			} else {
				a.print(a.render.Artifact(ref, artifact))
			}
		}
		if _, err := readLine(in, a.out, "\nPress Enter to continue "); err != nil {
			return nil
		}
	}
}
