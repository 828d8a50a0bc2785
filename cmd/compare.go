package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(compareCmd())
}

func compareCmd() *cobra.Command {
	var version1ID string
	var version2ID string

	var required = []string{"version1", "version2"}

	command := &cobra.Command{
		Use:     "compare",
		Short:   "compare two versions",
		Example: "revision compare -1 <version-id> -2 <version-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			stat, err := engine().Compares.CompareVersions(context.Background(), version1ID, version2ID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Files Added", "Files Removed", "Files Modified", "Lines Added", "Lines Removed"})
			table.Append([]string{
				strconv.Itoa(stat.FilesAdded),
				strconv.Itoa(stat.FilesRemoved),
				strconv.Itoa(stat.FilesModified),
				strconv.Itoa(stat.LinesAdded),
				strconv.Itoa(stat.LinesRemoved),
			})
			table.Render()

			sizes := tablewriter.NewWriter(os.Stdout)
			sizes.SetHeader([]string{"Category", "Before", "After", "Change", "Ratio"})
			categories := make([]string, 0, len(stat.Sizes))
			for category := range stat.Sizes {
				categories = append(categories, category)
			}
			sort.Strings(categories)
			for _, category := range categories {
				size := stat.Sizes[category]
				sizes.Append([]string{
					category,
					strconv.FormatInt(size.Before, 10),
					strconv.FormatInt(size.After, 10),
					strconv.FormatInt(size.Change, 10),
					fmt.Sprintf("%.2f", size.CompressionRatio),
				})
			}
			sizes.Render()

			if stat.DiffTruncated {
				logrus.Warn("line diff was truncated, counts are partial")
			}
		},
	}

	command.Flags().StringVarP(&version1ID, "version1", "1", "", "first version id (required)")
	command.Flags().StringVarP(&version2ID, "version2", "2", "", "second version id (required)")

	return command
}
