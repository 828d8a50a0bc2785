package cmd

import (
	"context"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emrgen/revision/internal/service"
)

func init() {
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(decideCmd())
	rootCmd.AddCommand(activateCmd())
	rootCmd.AddCommand(stepsCmd())
}

func submitCmd() *cobra.Command {
	var versionID string
	var roles []string
	var minApprovals int

	var required = []string{"version-id", "role"}

	command := &cobra.Command{
		Use:     "submit",
		Short:   "submit a version for approval",
		Long:    `submit a version for approval with one workflow step per role, in order`,
		Example: "revision submit -v <version-id> -r editor -r admin",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			steps := make([]service.StepSpec, 0, len(roles))
			for _, role := range roles {
				steps = append(steps, service.StepSpec{
					RequiredRole: role,
					MinApprovals: minApprovals,
				})
			}

			version, err := engine().Approvals.SubmitForApproval(context.Background(), versionID, steps)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("version %s submitted, workflow at step %d", version.ID, version.CurrentStep)
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().StringSliceVarP(&roles, "role", "r", nil, "required role per step, in order (required)")
	command.Flags().IntVarP(&minApprovals, "min-approvals", "n", 1, "approvals needed per step")

	command.Flags().SortFlags = false

	return command
}

func decideCmd() *cobra.Command {
	var versionID string
	var stepOrder int
	var approverID string
	var role string
	var approve bool
	var reject bool

	var required = []string{"version-id", "step", "role"}

	command := &cobra.Command{
		Use:     "decide",
		Short:   "approve or reject the current workflow step",
		Example: "revision decide -v <version-id> -s 1 -u <user> -r editor --approve",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}
			if approve == reject {
				color.Red("exactly one of --approve and --reject is required")
				return
			}

			approverID = resolveUser(approverID)
			if approverID == "" {
				color.Red("missing: --user (or set one with 'revision context set')")
				return
			}

			outcome, err := engine().Approvals.Decide(context.Background(), service.DecideRequest{
				VersionID:  versionID,
				StepOrder:  stepOrder,
				ApproverID: approverID,
				Role:       role,
				Approve:    approve,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			switch {
			case outcome.Terminal:
				logrus.Infof("workflow finished: step %d %s", outcome.Step.StepOrder, outcome.Step.Decision)
			case outcome.Resolved:
				logrus.Infof("step %d %s, workflow advanced", outcome.Step.StepOrder, outcome.Step.Decision)
			default:
				logrus.Infof("approval recorded: %d/%d on step %d",
					outcome.Step.Approvals, outcome.Step.MinApprovals, outcome.Step.StepOrder)
			}
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().IntVarP(&stepOrder, "step", "s", 0, "step order (required)")
	command.Flags().StringVarP(&approverID, "user", "u", "", "approver id")
	command.Flags().StringVarP(&role, "role", "r", "", "approver role (required)")
	command.Flags().BoolVar(&approve, "approve", false, "approve the step")
	command.Flags().BoolVar(&reject, "reject", false, "reject the step")

	command.Flags().SortFlags = false

	return command
}

func activateCmd() *cobra.Command {
	var versionID string
	var actor string

	var required = []string{"version-id"}

	command := &cobra.Command{
		Use:     "activate",
		Short:   "make an approved version the active one",
		Example: "revision activate -v <version-id> -u <user>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			actor = resolveUser(actor)
			if actor == "" {
				color.Red("missing: --user (or set one with 'revision context set')")
				return
			}

			version, err := engine().Approvals.Activate(context.Background(), versionID, actor)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("version %s is now active for content %s", version.ID, version.ContentID)
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().StringVarP(&actor, "user", "u", "", "activating user")

	return command
}

func stepsCmd() *cobra.Command {
	var versionID string

	var required = []string{"version-id"}

	command := &cobra.Command{
		Use:     "steps",
		Short:   "list a version's workflow steps",
		Example: "revision steps -v <version-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			steps, err := engine().Approvals.ListSteps(context.Background(), versionID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Step", "Role", "Approvals", "Decision", "Decided By"})
			for _, step := range steps {
				table.Append([]string{
					strconv.Itoa(step.StepOrder),
					step.RequiredRole,
					strconv.Itoa(step.Approvals) + "/" + strconv.Itoa(step.MinApprovals),
					step.Decision,
					step.DecidedBy,
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")

	return command
}
