package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pxng0lin/DeepCurrent/internal/domain"
	"github.com/pxng0lin/DeepCurrent/internal/repair"
)

func queryCmd(a *app) *cobra.Command {
	var report string
	cmd := newCommand(a, CommandConfig{
		Use:   "query <session> <contract> [question...]",
		Short: "Ask the query model about a contract's report",
		Long: `Sends the chosen report, the contract source and both diagrams to the
query model together with your question. Pieces that cannot be loaded are
marked as not available. Without a question on the command line the
question is read from the terminal.`,
		Example:    `  deepcurrent query latest Vault "Who can withdraw funds?" --report journey`,
		Args:       cobra.MinimumNArgs(2),
		GroupID:    "analysis",
		NeedsStore: true,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseKind(report)
			if err != nil {
				return err
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
			question := strings.Join(args[2:], " ")
			if strings.TrimSpace(question) == "" {
				if !isInteractive(a.in) {
					return errors.New("no question given")
				}
				if question, err = readLine(a.in, a.out, "Your question: "); err != nil {
					return err
				}
			}
			return a.ask(cmd, sessionID, ref, kind, question)
		},
	})
	cmd.Flags().StringVarP(&report, "report", "r", "functions", "Report to ask about: functions or journey")
	return cmd
}

func (a *app) ask(cmd *cobra.Command, sessionID string, ref domain.ContractRef, kind domain.Kind, question string) error {
	ctrl, err := a.controller(repair.Never)
	if err != nil {
		return err
	}
	answer, err := ctrl.AnswerQuery(cmd.Context(), kind, question, sessionID, ref.Fingerprint)
	if err != nil {
		return err
	}
	if strings.TrimSpace(answer) == "" {
		a.println(a.render.Warn("the query model returned no answer"))
		return nil
	}
	a.print(a.render.Markdown(answer))
	if !strings.HasSuffix(answer, "\n") {
		a.println("")
	}
	return nil
}
