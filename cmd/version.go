package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emrgen/revision/internal/service"
	"github.com/emrgen/revision/internal/store"
)

func init() {
	rootCmd.AddCommand(createVersionCmd())
	rootCmd.AddCommand(getVersionCmd())
	rootCmd.AddCommand(listVersionsCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(cleanupCmd())
}

func createVersionCmd() *cobra.Command {
	var contentID string
	var branchID string
	var parentID string
	var snapshotFile string
	var changelog string
	var createdBy string
	var tags []string

	var required = []string{"content-id", "file"}

	command := &cobra.Command{
		Use:     "create",
		Short:   "create a version from a snapshot file",
		Example: "revision create -c <content-id> -f <snapshot.json> -u <user>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			createdBy = resolveUser(createdBy)
			if createdBy == "" {
				color.Red("missing: --user (or set one with 'revision context set')")
				return
			}

			content, err := os.ReadFile(snapshotFile)
			if err != nil {
				logrus.Error(err)
				return
			}

			version, err := engine().Versions.CreateVersion(context.Background(), service.CreateVersionRequest{
				ContentID:       contentID,
				BranchID:        branchID,
				ParentVersionID: parentID,
				Content:         content,
				Changelog:       changelog,
				Tags:            tags,
				CreatedBy:       createdBy,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("version created with id: %s", version.ID)
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().StringVarP(&snapshotFile, "file", "f", "", "snapshot json file (required)")
	command.Flags().StringVarP(&createdBy, "user", "u", "", "creating user")
	command.Flags().StringVarP(&branchID, "branch-id", "b", "", "branch id")
	command.Flags().StringVarP(&parentID, "parent-id", "p", "", "parent version id")
	command.Flags().StringVarP(&changelog, "changelog", "m", "", "changelog message")
	command.Flags().StringSliceVarP(&tags, "tag", "t", nil, "version tags")

	command.Flags().SortFlags = false

	return command
}

func getVersionCmd() *cobra.Command {
	var versionID string

	var required = []string{"version-id"}

	command := &cobra.Command{
		Use:     "get",
		Short:   "get a version",
		Example: "revision get -v <version-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			version, err := engine().Versions.GetVersion(context.Background(), versionID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Content", "Branch", "Status", "Active", "Created By"})
			table.Append([]string{
				version.ID,
				version.ContentID,
				version.BranchID,
				version.Status,
				boolString(version.IsActive),
				version.CreatedBy,
			})
			table.Render()
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")

	return command
}

func listVersionsCmd() *cobra.Command {
	var contentID string
	var branchID string
	var status string
	var tag string

	var required = []string{"content-id"}

	command := &cobra.Command{
		Use:     "list",
		Short:   "list versions of a content",
		Example: "revision list -c <content-id> -s active",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			versions, err := engine().Versions.ListVersions(context.Background(), store.VersionFilter{
				ContentID: contentID,
				BranchID:  branchID,
				Status:    status,
				Tag:       tag,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Status", "Active", "Tags", "Created By", "Created At"})
			for _, version := range versions {
				table.Append([]string{
					version.ID,
					version.Status,
					boolString(version.IsActive),
					strings.Join(version.TagList(), ","),
					version.CreatedBy,
					version.CreatedAt.Format("2006-01-02 15:04:05"),
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().StringVarP(&branchID, "branch-id", "b", "", "branch id")
	command.Flags().StringVarP(&status, "status", "s", "", "status filter")
	command.Flags().StringVarP(&tag, "tag", "t", "", "tag filter")

	command.Flags().SortFlags = false

	return command
}

func timelineCmd() *cobra.Command {
	var contentID string

	var required = []string{"content-id"}

	command := &cobra.Command{
		Use:     "timeline",
		Short:   "show a content's version timeline",
		Example: "revision timeline -c <content-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			entries, err := engine().Versions.Timeline(context.Background(), contentID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Version", "Created At", "Created By", "Status", "Summary"})
			for _, entry := range entries {
				table.Append([]string{
					entry.VersionID,
					entry.CreatedAt,
					entry.CreatedBy,
					entry.Status,
					entry.Summary,
				})
			}
			table.Render()
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")

	return command
}

func cleanupCmd() *cobra.Command {
	var contentID string
	var keep int

	var required = []string{"content-id"}

	command := &cobra.Command{
		Use:     "cleanup",
		Short:   "prune old versions of a content",
		Example: "revision cleanup -c <content-id> -k 20",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			pruned, err := engine().Versions.CleanupOldVersions(context.Background(), contentID, keep)
			if err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("pruned %d versions", pruned)
		},
	}

	command.Flags().StringVarP(&contentID, "content-id", "c", "", "content id (required)")
	command.Flags().IntVarP(&keep, "keep", "k", 50, "versions to keep")

	return command
}

func boolString(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
