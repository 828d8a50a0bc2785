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
	rootCmd.AddCommand(rollbackCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(targetsCmd())
}

func rollbackCmd() *cobra.Command {
	var contentID string
	var versionID string
	var initiator string
	var reason string

	var required = []string{"content-id", "version-id"}

	command := &cobra.Command{
		Use:     "rollback",
		Short:   "roll a content back to an earlier version",
		Long:    `roll a content back to an earlier version by cloning it into a new active version`,
		Example: "revision rollback -c <content-id> -v <version-id> -u <user> -m \"bad deploy\"",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			initiator = resolveUser(initiator)
			if initiator == "" {
				color.Red("missing: --user (or set one with 'revision context set')")
				return
			}

			record, err := engine().Rollbacks.RollbackToVersion(context.Background(), service.RollbackRequest{
				ContentID:       contentID,
				TargetVersionID: versionID,
				Initiator:       initiator,
				Reason:          reason,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("rolled back to version %s as new version %s (record %s)",
				record.ToVersionID, record.NewVersionID, record.ID)
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().StringVarP(&versionID, "version-id", "v", "", "target version id (required)")
	command.Flags().StringVarP(&initiator, "user", "u", "", "initiating user")
	command.Flags().StringVarP(&reason, "reason", "m", "", "rollback reason")

	command.Flags().SortFlags = false

	return command
}

func previewCmd() *cobra.Command {
	var contentID string
	var versionID string

	var required = []string{"content-id", "version-id"}

	command := &cobra.Command{
		Use:     "preview",
		Short:   "preview a rollback without performing it",
		Example: "revision preview -c <content-id> -v <version-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			preview, err := engine().Rollbacks.PreviewRollback(context.Background(), contentID, versionID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Path", "Change", "Lines"})
			for _, change := range preview.FileChanges {
				table.Append([]string{change.Path, change.ChangeType, strconv.Itoa(change.Lines)})
			}
			table.Render()

			logrus.Infof("%d added, %d removed, %d modified, +%d/-%d lines",
				preview.Stat.FilesAdded, preview.Stat.FilesRemoved, preview.Stat.FilesModified,
				preview.Stat.LinesAdded, preview.Stat.LinesRemoved)
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().StringVarP(&versionID, "version-id", "v", "", "target version id (required)")

	return command
}

func targetsCmd() *cobra.Command {
	var contentID string
	var crossBranch bool

	var required = []string{"content-id"}

	command := &cobra.Command{
		Use:     "targets",
		Short:   "list the versions a content can be rolled back to",
		Example: "revision targets -c <content-id> --cross-branch",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			targets, err := engine().Rollbacks.GetRollbackTargets(context.Background(), contentID, crossBranch)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Branch", "Status", "Changelog", "Created At"})
			for _, target := range targets {
				table.Append([]string{
					target.ID,
					target.BranchID,
					target.Status,
					target.Changelog,
					target.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().BoolVar(&crossBranch, "cross-branch", false, "include versions from other branches")

	return command
}

func historyCmd() *cobra.Command {
	var contentID string

	var required = []string{"content-id"}

	command := &cobra.Command{
		Use:     "history",
		Short:   "list a content's rollback records",
		Example: "revision history -c <content-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			records, err := engine().Rollbacks.ListRollbackHistory(context.Background(), contentID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "From", "To", "Status", "Initiator", "Reason"})
			for _, record := range records {
				table.Append([]string{
					record.ID,
					record.FromVersionID,
					record.ToVersionID,
					record.Status,
					record.Initiator,
					record.Reason,
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")

	return command
}
