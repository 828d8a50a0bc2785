package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emrgen/revision/internal/service"
)

func init() {
	rootCmd.AddCommand(exportCmd())
}

func exportCmd() *cobra.Command {
	var versionID string
	var format string
	var out string
	var skipAssets bool
	var skipMetadata bool

	var required = []string{"version-id"}

	command := &cobra.Command{
		Use:     "export",
		Short:   "export a version",
		Example: "revision export -v <version-id> -F archive -o version.tar.gz",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			result, err := engine().Exports.Export(context.Background(), service.ExportRequest{
				VersionID:       versionID,
				Format:          format,
				IncludeAssets:   !skipAssets,
				IncludeMetadata: !skipMetadata,
			})
			if err != nil {
				logrus.Error(err)
				return
			}

			if out == "" {
				out = result.Filename
			}
			if err := os.WriteFile(out, result.Data, 0644); err != nil {
				logrus.Error(err)
				return
			}

			logrus.Infof("exported version %s to %s (%d bytes)", versionID, out, len(result.Data))
		},
	}

	command.Flags().StringVarP(&versionID, "version-id", "v", "", "version id (required)")
	command.Flags().StringVarP(&format, "format", "F", service.FormatArchive, "export format: metadata or archive")
	command.Flags().StringVarP(&out, "out", "o", "", "output file")
	command.Flags().BoolVar(&skipAssets, "no-assets", false, "exclude file bodies")
	command.Flags().BoolVar(&skipMetadata, "no-metadata", false, "exclude version metadata")

	command.Flags().SortFlags = false

	return command
}
